package kafka

import (
	"Agora/internal/api/config"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理 Kafka 消费者
type ConsumerManager struct {
	postConsumer sarama.ConsumerGroup
	postHandler  sarama.ConsumerGroupHandler
	postTopic    string
}

// NewConsumerManager 构造函数
func NewConsumerManager(cfg *config.Config, postHandler *PostSeedHandler) (*ConsumerManager, error) {
	saramaCfg, err := newSaramaConfig(cfg.Kafka)
	if err != nil {
		return nil, err
	}

	postConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaPostConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		postConsumer: postConsumer,
		postHandler:  postHandler,
		postTopic:    cfg.KafkaPostConsumer.Topic,
	}, nil
}

// Start 启动消费者，阻塞直到 ctx 取消
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		for err := range m.postConsumer.Errors() {
			log.Error("Post consumer error", "err", err)
		}
	}()

	go func() {
		log.Info("Post consumer started", "topic", m.postTopic)
		for {
			if err := m.postConsumer.Consume(ctx, []string{m.postTopic}, m.postHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.postConsumer.Close(); err != nil {
		log.Error("Failed to close post consumer", "err", err)
	}
	return nil
}
