package kafka

import (
	"Agora/internal/pkg/consts"
	"Agora/internal/pkg/redis"
	"context"
	log "log/slog"
	"strconv"

	"github.com/IBM/sarama"
)

// PostSeedHandler 监听 posts 表 binlog，新帖发布时把浏览量计数与热榜分数初始化为 0
type PostSeedHandler struct {
	counters *redis.CounterCache
	ranking  *redis.RankingIndex
	epoch    string
}

func NewPostSeedHandler(counters *redis.CounterCache, ranking *redis.RankingIndex, epoch string) *PostSeedHandler {
	return &PostSeedHandler{
		counters: counters,
		ranking:  ranking,
		epoch:    epoch,
	}
}

func (s *PostSeedHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("post seed consumer setup")
	return nil
}

func (s *PostSeedHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("post seed consumer cleanup")
	return nil
}

func (s *PostSeedHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-post consume claim")
	return pullMessageBatch(session, claim, s.logic)
}

func (s *PostSeedHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := ToCanalMessage(msg, "posts")
	if err != nil {
		return err
	}
	// 只关心新建；删除与更新不销毁计数（只有周期重置与全量重建会销毁）
	if canalMsg.Type != INSERT {
		return nil
	}

	for _, row := range canalMsg.Data {
		if status, _ := row["status"].(string); status != "" && status != consts.PostStatusNormal {
			continue
		}
		postID, err := StrToUint64(row["post_id"])
		if err != nil {
			log.WarnContext(ctx, "invalid post_id in canal row", "err", err)
			continue
		}
		views, err := StrToInt64(row["view_count"])
		if err != nil {
			views = 0
		}
		if err = s.Seed(ctx, postID, views); err != nil {
			return err
		}
	}
	return nil
}

// Seed 幂等初始化：已存在的计数与分数保持不变
func (s *PostSeedHandler) Seed(ctx context.Context, postID uint64, views int64) error {
	_, created, err := s.counters.SetIfAbsent(ctx, consts.PostViewCountKey(postID), views)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	_, err = s.ranking.AddIfAbsent(ctx, s.epoch, strconv.FormatUint(postID, 10), float64(views))
	return err
}
