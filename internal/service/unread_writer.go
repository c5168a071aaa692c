package service

import (
	"Agora/internal/api/config"
	"Agora/internal/pkg/consts"
	"Agora/internal/pkg/logger"
	"Agora/internal/pkg/redis"
	"context"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type unreadOp struct {
	userID uint64
	delta  int64
}

// UnreadWriter 未读数缓存的异步写入器
// 有界队列 + 固定 worker；重试耗尽后删除该用户的缓存字段，下次读取时从数据库重新聚合
type UnreadWriter struct {
	counters   *redis.CounterCache
	queue      chan unreadOp
	maxRetries int
	backoff    time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	failures    atomic.Int64
	invalidated atomic.Int64
}

func NewUnreadWriter(counters *redis.CounterCache, cfg config.UnreadConfig) *UnreadWriter {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	backoff := time.Duration(cfg.BackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	w := &UnreadWriter{
		counters:   counters,
		queue:      make(chan unreadOp, queueSize),
		maxRetries: max(cfg.MaxRetries, 1),
		backoff:    backoff,
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}
	return w
}

// Submit 投递一次未读数调整，不阻塞调用方
// 队列已满时直接使该用户的缓存失效
func (w *UnreadWriter) Submit(ctx context.Context, userID uint64, delta int64) {
	if delta == 0 {
		return
	}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		w.invalidate(ctx, userID)
		return
	}
	select {
	case w.queue <- unreadOp{userID: userID, delta: delta}:
		w.mu.RUnlock()
		return
	default:
	}
	w.mu.RUnlock()

	log.WarnContext(ctx, "unread writer queue full", "user_id", userID, "delta", delta)
	w.failures.Add(1)
	w.invalidate(ctx, userID)
}

// Close 停止接收并等待队列中的剩余任务处理完
func (w *UnreadWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

// Failures 重试耗尽或入队失败的次数
func (w *UnreadWriter) Failures() int64 {
	return w.failures.Load()
}

// Invalidated 因写入失败而删除的缓存字段数
func (w *UnreadWriter) Invalidated() int64 {
	return w.invalidated.Load()
}

func (w *UnreadWriter) worker() {
	defer w.wg.Done()
	for op := range w.queue {
		w.apply(op)
	}
}

func (w *UnreadWriter) apply(op unreadOp) {
	ctx := logger.WithTraceID(context.Background(), "unread")
	key := consts.UserUnreadMapKey(op.userID)

	backoff := w.backoff
	var err error
	for i := 0; i < w.maxRetries; i++ {
		// 字段不存在时不创建：首次读取会从数据库聚合，已包含这次变化
		if _, _, err = w.counters.AdjustHashField(ctx, key, consts.UnreadMessagesField, op.delta); err == nil {
			return
		}
		if i < w.maxRetries-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	w.failures.Add(1)
	log.ErrorContext(ctx, "adjust unread counter failed, invalidating",
		"user_id", op.userID,
		"delta", op.delta,
		"retries", w.maxRetries,
		"err", err)
	w.invalidate(ctx, op.userID)
}

func (w *UnreadWriter) invalidate(ctx context.Context, userID uint64) {
	key := consts.UserUnreadMapKey(userID)
	if err := w.counters.DeleteHashField(ctx, key, consts.UnreadMessagesField); err != nil {
		// 删除也失败时缓存可能偏离，等待未读数对账任务修正
		log.ErrorContext(ctx, "invalidate unread counter failed", "user_id", userID, "err", err)
		return
	}
	w.invalidated.Add(1)
}
