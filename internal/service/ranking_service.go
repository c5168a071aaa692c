package service

import (
	"Agora/internal/api/config"
	"Agora/internal/api/dto"
	"Agora/internal/model"
	"Agora/internal/pkg/redis"
	"Agora/internal/repository"
	"context"
	log "log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxRefreshLimit = 1000

// CounterFlusher 把缓存计数回写数据库
type CounterFlusher interface {
	FlushCounters(ctx context.Context) error
}

// RankingRebuilder 清空并按数据库浏览量重建缓存计数与热榜，返回重建的帖子数
type RankingRebuilder interface {
	RebuildRanking(ctx context.Context, limit int) (int, error)
}

type RankingService interface {
	HotPosts(ctx context.Context, limit int) ([]*dto.HotPostDTO, error)
	Stats(ctx context.Context) (*dto.RankingStatsDTO, error)
	Refresh(ctx context.Context, limit int) (*dto.RefreshRankingDTO, error)
}

type rankingServiceImpl struct {
	ranking  *redis.RankingIndex
	postRepo repository.PostRepo
	views    ViewCounterService
	flusher  CounterFlusher
	rebuild  RankingRebuilder
	cfg      config.RankingConfig

	refreshMu      sync.Mutex
	refreshLimiter *rate.Limiter
}

func NewRankingService(
	ranking *redis.RankingIndex,
	postRepo repository.PostRepo,
	views ViewCounterService,
	flusher CounterFlusher,
	rebuild RankingRebuilder,
	cfg config.RankingConfig,
) RankingService {
	interval := time.Duration(cfg.RefreshIntervalSec) * time.Second
	limiter := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &rankingServiceImpl{
		ranking:        ranking,
		postRepo:       postRepo,
		views:          views,
		flusher:        flusher,
		rebuild:        rebuild,
		cfg:            cfg,
		refreshLimiter: limiter,
	}
}

// HotPosts 当前周期热榜，附带实时浏览量；缓存不可用时退化为数据库累计浏览量排序
func (s *rankingServiceImpl) HotPosts(ctx context.Context, limit int) ([]*dto.HotPostDTO, error) {
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit < 1 || limit > s.cfg.MaxLimit {
		return nil, ErrParamInvalid
	}

	entries, err := s.ranking.TopK(ctx, s.cfg.Epoch, limit)
	if err != nil {
		log.WarnContext(ctx, "ranking cache unavailable, fallback to database", "err", err)
		rows, dbErr := s.postRepo.TopActiveViewCounts(ctx, limit)
		if dbErr != nil {
			return nil, dbErr
		}
		entries = make([]redis.Entry, 0, len(rows))
		for _, r := range rows {
			entries = append(entries, redis.Entry{Member: strconv.FormatUint(r.PostID, 10), Score: float64(r.ViewCount)})
		}
	}

	res := make([]*dto.HotPostDTO, 0, len(entries))
	if len(entries) == 0 {
		return res, nil
	}

	ids := make([]uint64, 0, len(entries))
	scores := make(map[uint64]float64, len(entries))
	for _, e := range entries {
		id, err := strconv.ParseUint(e.Member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		scores[id] = e.Score
	}

	posts, err := s.postRepo.GetPostsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.Post, len(posts))
	durable := make(map[uint64]int64, len(posts))
	for _, p := range posts {
		byID[p.PostID] = p
		durable[p.PostID] = p.ViewCount
	}
	live := s.views.Peek(ctx, ids, durable)

	for _, id := range ids {
		post, ok := byID[id]
		if !ok {
			// 已删除的帖子不展示
			continue
		}
		detail, err := toPostDetailDTO(post)
		if err != nil {
			return nil, err
		}
		detail.ViewCount = live[id]
		res = append(res, &dto.HotPostDTO{PostDetailDTO: *detail, HotScore: scores[id]})
	}
	return res, nil
}

func (s *rankingServiceImpl) Stats(ctx context.Context) (*dto.RankingStatsDTO, error) {
	out := &dto.RankingStatsDTO{
		RankingType: s.cfg.Epoch,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}

	total, err := s.ranking.Cardinality(ctx, s.cfg.Epoch)
	if err != nil {
		log.WarnContext(ctx, "ranking stats unavailable", "err", err)
		return out, nil
	}
	out.TotalPosts = total

	top, err := s.ranking.TopK(ctx, s.cfg.Epoch, 1)
	if err != nil {
		log.WarnContext(ctx, "ranking stats unavailable", "err", err)
		return out, nil
	}
	if len(top) > 0 {
		if id, err := strconv.ParseUint(top[0].Member, 10, 64); err == nil {
			out.TopPost = &dto.TopPostDTO{PostID: id, HotScore: top[0].Score}
		}
	}
	return out, nil
}

// Refresh 先把缓存计数回写数据库，再按数据库浏览量全量重建
// 参数非法或过于频繁时直接拒绝，不产生任何副作用
func (s *rankingServiceImpl) Refresh(ctx context.Context, limit int) (*dto.RefreshRankingDTO, error) {
	if limit == 0 {
		limit = s.cfg.RefreshLimit
	}
	if limit < 1 || limit > maxRefreshLimit {
		return nil, ErrParamInvalid
	}

	if !s.refreshMu.TryLock() {
		return nil, ErrRefreshTooFrequent
	}
	defer s.refreshMu.Unlock()
	if !s.refreshLimiter.Allow() {
		return nil, ErrRefreshTooFrequent
	}

	if err := s.flusher.FlushCounters(ctx); err != nil {
		// 回写失败时不能清空缓存，否则未落库的浏览量会丢失
		log.ErrorContext(ctx, "flush counters before refresh failed", "err", err)
		return nil, err
	}

	total, err := s.rebuild.RebuildRanking(ctx, limit)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "ranking refreshed", "limit", limit, "total", total)
	return &dto.RefreshRankingDTO{Total: total}, nil
}
