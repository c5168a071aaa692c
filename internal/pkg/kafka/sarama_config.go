package kafka

import (
	"Agora/internal/api/config"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

const defaultClientID = "forum-counter"

// newSaramaConfig 统一初始化 sarama.Config
// 关闭自动提交：一批消息全部处理完才 MarkMessage 并 Commit
func newSaramaConfig(kafkaCfg config.KafkaConfig) (*sarama.Config, error) {
	c := sarama.NewConfig()
	c.ClientID = defaultClientID
	if kafkaCfg.ClientID != "" {
		c.ClientID = kafkaCfg.ClientID
	}

	if kafkaCfg.Sasl.Enable {
		c.Net.SASL.Enable = true
		c.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		c.Net.SASL.User = kafkaCfg.Sasl.Username
		c.Net.SASL.Password = kafkaCfg.Sasl.Password
	}

	c.Consumer.Return.Errors = true
	switch kafkaCfg.Consumer.InitialOffset {
	case "", "newest":
		c.Consumer.Offsets.Initial = sarama.OffsetNewest
	case "oldest":
		// 冷启动时回放历史新帖，计数器初始化是幂等的
		c.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		return nil, fmt.Errorf("invalid kafka initial offset %q", kafkaCfg.Consumer.InitialOffset)
	}
	c.Consumer.Offsets.AutoCommit.Enable = false
	c.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	c.Consumer.Group.Session.Timeout = seconds(kafkaCfg.Consumer.SessionTimeout, 30)
	c.Consumer.Group.Heartbeat.Interval = seconds(kafkaCfg.Consumer.HeartbeatInterval, 3)
	c.Consumer.Group.Rebalance.Timeout = seconds(kafkaCfg.Consumer.RebalanceTimeout, 60)
	c.Consumer.MaxProcessingTime = seconds(kafkaCfg.Consumer.MaxProcessingTime, 10)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	return c, nil
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}
