package service

import (
	"Agora/internal/pkg/consts"
	"Agora/internal/pkg/redis"
	"Agora/internal/repository"
	"context"
	log "log/slog"
	"strconv"
)

// ViewCounterService 浏览量读穿缓存：缓存计数 + 热榜分数，缓存异常时降级到数据库
type ViewCounterService interface {
	Hit(ctx context.Context, postID uint64, durableViews int64) (int64, error)
	Peek(ctx context.Context, postIDs []uint64, fallback map[uint64]int64) map[uint64]int64
}

type viewCounterServiceImpl struct {
	counters *redis.CounterCache
	ranking  *redis.RankingIndex
	postRepo repository.PostRepo
	epoch    string
}

func NewViewCounterService(counters *redis.CounterCache, ranking *redis.RankingIndex, postRepo repository.PostRepo, epoch string) ViewCounterService {
	return &viewCounterServiceImpl{
		counters: counters,
		ranking:  ranking,
		postRepo: postRepo,
		epoch:    epoch,
	}
}

// Hit 记一次浏览并返回最新浏览量
// 缓存未命中时以数据库浏览量初始化，计数器与热榜分数在同一个脚本里更新
func (s *viewCounterServiceImpl) Hit(ctx context.Context, postID uint64, durableViews int64) (int64, error) {
	key := consts.PostViewCountKey(postID)
	views, _, err := s.ranking.RecordHit(ctx, s.epoch, key, strconv.FormatUint(postID, 10), durableViews, 1)
	if err != nil {
		return s.fallback(ctx, postID, durableViews, err)
	}
	return views, nil
}

func (s *viewCounterServiceImpl) fallback(ctx context.Context, postID uint64, durableViews int64, cause error) (int64, error) {
	log.WarnContext(ctx, "view counter cache unavailable, fallback to database",
		"post_id", postID,
		"err", cause)

	views, err := s.postRepo.IncrementViewCount(ctx, postID)
	if err != nil {
		log.ErrorContext(ctx, "fallback view increment failed", "post_id", postID, "err", err)
		return durableViews, err
	}
	return views, nil
}

// Peek 批量读取实时浏览量，未命中或缓存不可用时使用 fallback 中的数据库值
func (s *viewCounterServiceImpl) Peek(ctx context.Context, postIDs []uint64, fallback map[uint64]int64) map[uint64]int64 {
	res := make(map[uint64]int64, len(postIDs))
	keys := make([]string, 0, len(postIDs))
	for _, id := range postIDs {
		res[id] = fallback[id]
		keys = append(keys, consts.PostViewCountKey(id))
	}

	cached, err := s.counters.MGet(ctx, keys)
	if err != nil {
		log.WarnContext(ctx, "peek view counters failed, using database values", "err", err)
		return res
	}
	for i, id := range postIDs {
		if v, ok := cached[keys[i]]; ok {
			res[id] = v
		}
	}
	return res
}
