package job

import (
	"Agora/internal/api/config"
	"Agora/internal/pkg/logger"
	"Agora/internal/pkg/redis"
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// 依次扩大回溯窗口寻找上一次触发时间，覆盖日/周/月/年级别的表达式
var boundaryLookback = []time.Duration{
	8 * 24 * time.Hour,
	32 * 24 * time.Hour,
	367 * 24 * time.Hour,
}

// EpochResetJob 在周期边界清空热榜
// 以“不晚于当前时间的最近一次计划触发时间”作为边界，同一边界内重复触发只生效一次
type EpochResetJob struct {
	ranking  *redis.RankingIndex
	epoch    string
	spec     string
	schedule cron.Schedule
	loc      *time.Location
	now      func() time.Time
}

func NewEpochResetJob(ranking *redis.RankingIndex, cfg config.RankingConfig) (*EpochResetJob, error) {
	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	schedule, err := cron.ParseStandard(cfg.ResetSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid ranking reset spec %q: %w", cfg.ResetSpec, err)
	}
	return &EpochResetJob{
		ranking:  ranking,
		epoch:    cfg.Epoch,
		spec:     cfg.ResetSpec,
		schedule: schedule,
		loc:      loc,
		now:      time.Now,
	}, nil
}

// LoadLocation 空字符串按本地时区处理
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func (s *EpochResetJob) Spec() string {
	return s.spec
}

func (s *EpochResetJob) Run() {
	ctx := logger.WithTraceID(context.Background(), "epoch-reset")
	if _, _, err := s.Reset(ctx); err != nil {
		log.ErrorContext(ctx, "reset ranking epoch error", "epoch", s.epoch, "err", err)
	}
}

// Reset 返回是否真正执行了清空以及清除的成员数
func (s *EpochResetJob) Reset(ctx context.Context) (bool, int64, error) {
	now := s.now().In(s.loc)
	boundary, ok := s.Boundary(now)
	if !ok {
		log.WarnContext(ctx, "no reset boundary found before now", "spec", s.spec, "now", now)
		return false, 0, nil
	}

	// 标记保留到下一个边界之后，防止边界附近的重复触发
	ttl := s.schedule.Next(boundary).Sub(boundary) + time.Hour
	done, removed, err := s.ranking.ResetOnce(ctx, s.epoch, strconv.FormatInt(boundary.Unix(), 10), ttl)
	if err != nil {
		return false, 0, err
	}
	if done {
		log.InfoContext(ctx, "ranking epoch reset",
			"epoch", s.epoch,
			"boundary", boundary.Format(time.RFC3339),
			"removed", removed)
	} else {
		log.InfoContext(ctx, "ranking epoch already reset for boundary",
			"epoch", s.epoch,
			"boundary", boundary.Format(time.RFC3339))
	}
	return done, removed, nil
}

// Boundary 不晚于 now 的最近一次计划触发时间
func (s *EpochResetJob) Boundary(now time.Time) (time.Time, bool) {
	for _, lookback := range boundaryLookback {
		var (
			last  time.Time
			found bool
		)
		for next := s.schedule.Next(now.Add(-lookback)); !next.IsZero() && !next.After(now); next = s.schedule.Next(next) {
			last, found = next, true
		}
		if found {
			return last, true
		}
	}
	return time.Time{}, false
}
