package job

import (
	"Agora/internal/pkg/consts"
	"Agora/internal/pkg/logger"
	"Agora/internal/pkg/redis"
	"Agora/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"gorm.io/gorm"
)

// SyncReport 一次浏览量回写的结果
type SyncReport struct {
	Scanned int
	Applied int
	// Raised 数据库值更高（缓存故障期间走了降级自增）时反向抬升缓存的数量
	Raised  int
	Skipped int
	Failed  int
}

// ViewSyncJob 周期性把 post:views:* 回写到 posts.view_count
type ViewSyncJob struct {
	counters *redis.CounterCache
	postRepo repository.PostRepo
	batch    int64
}

func NewViewSyncJob(counters *redis.CounterCache, postRepo repository.PostRepo, batch int) *ViewSyncJob {
	return &ViewSyncJob{
		counters: counters,
		postRepo: postRepo,
		batch:    int64(batch),
	}
}

func (s *ViewSyncJob) Run() {
	ctx := logger.WithTraceID(context.Background(), "view-sync")

	report, err := s.Sync(ctx)
	if err != nil {
		log.ErrorContext(ctx, "sync view counters aborted", "err", err)
		return
	}
	log.InfoContext(ctx, "sync view counters success",
		"scanned", report.Scanned,
		"applied", report.Applied,
		"raised", report.Raised,
		"failed", report.Failed)
}

// Sync 对缓存做逐批快照并逐行回写；单个 key 失败只计数，不中断整批
// 回写只会调高 view_count，缓存落后于数据库时反向修正缓存
func (s *ViewSyncJob) Sync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}
	err := s.counters.ForEach(ctx, consts.PostViewKey, s.batch, func(key string, views int64) {
		report.Scanned++

		postID, ok := consts.ParseIDSuffix(key, consts.PostViewKey)
		if !ok {
			report.Skipped++
			return
		}

		applied, err := s.postRepo.SyncViewCount(ctx, postID, views)
		if err != nil {
			report.Failed++
			log.ErrorContext(ctx, "sync view count error", "post_id", postID, "views", views, "err", err)
			return
		}
		if applied {
			report.Applied++
			return
		}

		durable, err := s.postRepo.GetViewCount(ctx, postID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 帖子行已不存在，计数器留给重建清理
			report.Skipped++
			return
		}
		if err != nil {
			report.Failed++
			log.ErrorContext(ctx, "read durable view count error", "post_id", postID, "err", err)
			return
		}
		if durable > views {
			if _, err = s.counters.RaiseTo(ctx, key, durable); err != nil {
				report.Failed++
				log.WarnContext(ctx, "raise view counter error", "post_id", postID, "err", err)
				return
			}
			report.Raised++
		}
	})
	return report, err
}

// FlushCounters 供管理员刷新热榜前调用，任何 key 回写失败都视为失败
func (s *ViewSyncJob) FlushCounters(ctx context.Context) error {
	report, err := s.Sync(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("flush view counters: %d of %d keys failed", report.Failed, report.Scanned)
	}
	return nil
}
