package cron

import (
	"Agora/internal/pkg/logger"
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Manager 定时任务引擎：按下一次触发时间调度，同一任务上一轮未结束时跳过本轮
type Manager struct {
	engine *cron.Cron
	jobs   []entry
}

type entry struct {
	name string
	spec string
	job  cron.Job
}

func NewCronManager(loc *time.Location) *Manager {
	l := logger.NewCronLogger()
	return &Manager{
		engine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

// Add 登记任务，spec 为空表示禁用
func (s *Manager) Add(name, spec string, job cron.Job) {
	if spec == "" {
		log.Info("Cron job disabled", "job", name)
		return
	}
	s.jobs = append(s.jobs, entry{name: name, spec: spec, job: job})
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	for _, e := range s.jobs {
		if _, err := s.engine.AddJob(e.spec, e.job); err != nil {
			return fmt.Errorf("register cron job %s (%s): %w", e.name, e.spec, err)
		}
		log.Info("Cron job registered", "job", e.name, "spec", e.spec)
	}
	return nil
}

// Init 注册全部任务并启动引擎
func (s *Manager) Init() error {
	if err := s.RegisterJobs(); err != nil {
		return err
	}
	s.Start()
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

// Stop 停止调度并等待正在执行的任务结束，ctx 到期则放弃等待
func (s *Manager) Stop(ctx context.Context) {
	log.Info("Cron 定时任务引擎停止")
	done := s.engine.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn("Cron jobs still running at shutdown")
	}
}
