package job

import (
	"Agora/internal/pkg/consts"
	"Agora/internal/pkg/logger"
	"Agora/internal/pkg/redis"
	"Agora/internal/repository"
	"context"
	log "log/slog"
)

// UnreadSyncJob 用数据库聚合覆盖已缓存的未读数，修正异步写入丢失或竞争造成的偏差
type UnreadSyncJob struct {
	counters    *redis.CounterCache
	messageRepo repository.MessageRepo
	batch       int
}

func NewUnreadSyncJob(counters *redis.CounterCache, messageRepo repository.MessageRepo, batch int) *UnreadSyncJob {
	if batch <= 0 {
		batch = 200
	}
	return &UnreadSyncJob{
		counters:    counters,
		messageRepo: messageRepo,
		batch:       batch,
	}
}

func (s *UnreadSyncJob) Run() {
	ctx := logger.WithTraceID(context.Background(), "unread-sync")

	report, err := s.Sync(ctx)
	if err != nil {
		log.ErrorContext(ctx, "sync unread counters aborted", "err", err)
		return
	}
	log.InfoContext(ctx, "sync unread counters success",
		"scanned", report.Scanned,
		"applied", report.Applied,
		"failed", report.Failed)
}

func (s *UnreadSyncJob) Sync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}

	var userIDs []uint64
	err := s.counters.ScanKeys(ctx, consts.UserUnreadKey, int64(s.batch), func(key string) {
		report.Scanned++
		if id, ok := consts.ParseIDSuffix(key, consts.UserUnreadKey); ok {
			userIDs = append(userIDs, id)
		} else {
			report.Skipped++
		}
	})
	if err != nil {
		return report, err
	}

	for start := 0; start < len(userIDs); start += s.batch {
		chunk := userIDs[start:min(start+s.batch, len(userIDs))]
		counts, err := s.messageRepo.CountUnreadByReceivers(ctx, chunk)
		if err != nil {
			report.Failed += len(chunk)
			log.ErrorContext(ctx, "count unread by receivers error", "size", len(chunk), "err", err)
			continue
		}
		for _, uid := range chunk {
			err = s.counters.SetHashField(ctx, consts.UserUnreadMapKey(uid), consts.UnreadMessagesField, counts[uid])
			if err != nil {
				report.Failed++
				log.WarnContext(ctx, "set unread counter error", "user_id", uid, "err", err)
				continue
			}
			report.Applied++
		}
	}
	return report, nil
}
