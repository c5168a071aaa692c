package bootstrap

import (
	"Agora/internal/model"
	"Agora/internal/pkg/consts"
	"Agora/internal/pkg/redis"
	"Agora/internal/repository"
	"context"
	"fmt"
	log "log/slog"
	"strconv"

	"github.com/pkg/errors"
)

// Report 预热 / 重建结果；CacheErrors 为写缓存失败的次数
type Report struct {
	Posts          int
	CountersSeeded int
	ScoresSeeded   int
	UnreadUsers    int
	UnreadSeeded   int
	Deleted        int64
	Cleared        int64
	CacheErrors    int
}

// Loader 从数据库恢复缓存计数与热榜
// 读数据库失败直接返回错误（启动时致命）；写缓存失败只计数
type Loader struct {
	counters    *redis.CounterCache
	ranking     *redis.RankingIndex
	postRepo    repository.PostRepo
	messageRepo repository.MessageRepo
	epoch       string
	batch       int
}

func NewLoader(
	counters *redis.CounterCache,
	ranking *redis.RankingIndex,
	postRepo repository.PostRepo,
	messageRepo repository.MessageRepo,
	epoch string,
	batch int,
) *Loader {
	if batch <= 0 {
		batch = 500
	}
	return &Loader{
		counters:    counters,
		ranking:     ranking,
		postRepo:    postRepo,
		messageRepo: messageRepo,
		epoch:       epoch,
		batch:       batch,
	}
}

// Run 按模式执行，供进程启动时调用
func (s *Loader) Run(ctx context.Context, mode string, limit int) (*Report, error) {
	switch mode {
	case consts.BootstrapModeFill, "":
		return s.Fill(ctx)
	case consts.BootstrapModeRebuild:
		return s.Rebuild(ctx, limit)
	default:
		return nil, fmt.Errorf("unknown bootstrap mode %q", mode)
	}
}

// Fill 只填补缺口：已存在的计数与分数不会被覆盖
// 热榜分数只在本次新建了计数器时补齐，周期重置后已有计数器的帖子不会被重新计入
func (s *Loader) Fill(ctx context.Context) (*Report, error) {
	report := &Report{}
	var firstErr error
	cacheErr := func(err error) {
		report.CacheErrors++
		if firstErr == nil {
			firstErr = err
		}
	}

	err := s.postRepo.ListActiveViewCounts(ctx, s.batch, func(rows []model.PostViewCount) error {
		for _, r := range rows {
			report.Posts++
			_, created, err := s.counters.SetIfAbsent(ctx, consts.PostViewCountKey(r.PostID), r.ViewCount)
			if err != nil {
				cacheErr(err)
				continue
			}
			if !created {
				continue
			}
			report.CountersSeeded++

			added, err := s.ranking.AddIfAbsent(ctx, s.epoch, strconv.FormatUint(r.PostID, 10), float64(r.ViewCount))
			if err != nil {
				cacheErr(err)
				continue
			}
			if added {
				report.ScoresSeeded++
			}
		}
		return nil
	})
	if err != nil {
		return report, errors.Wrap(err, "bootstrap fill: list active posts")
	}

	err = s.messageRepo.ListUnreadAggregates(ctx, s.batch, func(rows []model.UnreadAggregate) error {
		for _, r := range rows {
			report.UnreadUsers++
			ok, err := s.counters.SetHashFieldIfAbsent(ctx, consts.UserUnreadMapKey(r.ReceiverID), consts.UnreadMessagesField, r.Count)
			if err != nil {
				cacheErr(err)
				continue
			}
			if ok {
				report.UnreadSeeded++
			}
		}
		return nil
	})
	if err != nil {
		return report, errors.Wrap(err, "bootstrap fill: list unread aggregates")
	}

	s.logReport(ctx, "fill", report, firstErr)
	return report, nil
}

// Rebuild 无条件清空计数、未读数与当前周期热榜，再按数据库重建
// limit > 0 时只为浏览量最高的 limit 个帖子重建，其余帖子在下次访问时懒加载
// 先读完数据库再动缓存，数据库读取失败时缓存保持原样
func (s *Loader) Rebuild(ctx context.Context, limit int) (*Report, error) {
	report := &Report{}

	posts, err := s.loadPosts(ctx, limit)
	if err != nil {
		return report, errors.Wrap(err, "bootstrap rebuild: load posts")
	}
	var unread []model.UnreadAggregate
	err = s.messageRepo.ListUnreadAggregates(ctx, s.batch, func(rows []model.UnreadAggregate) error {
		unread = append(unread, rows...)
		return nil
	})
	if err != nil {
		return report, errors.Wrap(err, "bootstrap rebuild: list unread aggregates")
	}

	if report.Deleted, err = s.counters.DeleteByPrefix(ctx, consts.PostViewKey, int64(s.batch)); err != nil {
		return report, err
	}
	n, err := s.counters.DeleteByPrefix(ctx, consts.UserUnreadKey, int64(s.batch))
	if err != nil {
		return report, err
	}
	report.Deleted += n
	if report.Cleared, err = s.ranking.Clear(ctx, s.epoch); err != nil {
		return report, err
	}

	var firstErr error
	entries := make([]redis.Entry, 0, s.batch)
	flush := func() {
		if len(entries) == 0 {
			return
		}
		if err := s.ranking.UpsertScores(ctx, s.epoch, entries); err != nil {
			report.CacheErrors++
			if firstErr == nil {
				firstErr = err
			}
		} else {
			report.ScoresSeeded += len(entries)
		}
		entries = entries[:0]
	}

	for _, p := range posts {
		report.Posts++
		// 重建期间并发请求可能已按同一数据库值初始化并自增，保留其结果
		if _, _, err := s.counters.SetIfAbsent(ctx, consts.PostViewCountKey(p.PostID), p.ViewCount); err != nil {
			report.CacheErrors++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		report.CountersSeeded++
		entries = append(entries, redis.Entry{Member: strconv.FormatUint(p.PostID, 10), Score: float64(p.ViewCount)})
		if len(entries) >= s.batch {
			flush()
		}
	}
	flush()

	for _, u := range unread {
		report.UnreadUsers++
		if err := s.counters.SetHashField(ctx, consts.UserUnreadMapKey(u.ReceiverID), consts.UnreadMessagesField, u.Count); err != nil {
			report.CacheErrors++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		report.UnreadSeeded++
	}

	s.logReport(ctx, "rebuild", report, firstErr)
	return report, nil
}

// RebuildRanking 管理员刷新热榜入口
func (s *Loader) RebuildRanking(ctx context.Context, limit int) (int, error) {
	report, err := s.Rebuild(ctx, limit)
	if err != nil {
		return 0, err
	}
	if report.CacheErrors > 0 {
		return report.ScoresSeeded, fmt.Errorf("rebuild ranking: %d cache writes failed", report.CacheErrors)
	}
	return report.Posts, nil
}

func (s *Loader) loadPosts(ctx context.Context, limit int) ([]model.PostViewCount, error) {
	if limit > 0 {
		return s.postRepo.TopActiveViewCounts(ctx, limit)
	}
	var all []model.PostViewCount
	err := s.postRepo.ListActiveViewCounts(ctx, s.batch, func(rows []model.PostViewCount) error {
		all = append(all, rows...)
		return nil
	})
	return all, err
}

func (s *Loader) logReport(ctx context.Context, mode string, report *Report, firstErr error) {
	fields := []any{
		"mode", mode,
		"posts", report.Posts,
		"counters_seeded", report.CountersSeeded,
		"scores_seeded", report.ScoresSeeded,
		"unread_users", report.UnreadUsers,
		"unread_seeded", report.UnreadSeeded,
		"deleted", report.Deleted,
		"cleared", report.Cleared,
	}
	if report.CacheErrors > 0 {
		log.WarnContext(ctx, "cache bootstrap finished with errors",
			append(fields, "cache_errors", report.CacheErrors, "first_err", firstErr)...)
		return
	}
	log.InfoContext(ctx, "cache bootstrap finished", fields...)
}
