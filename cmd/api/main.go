package main

import (
	"Agora/internal/api/config"
	"Agora/internal/pkg/database"
	"Agora/internal/pkg/logger"
	"Agora/internal/pkg/redis"
	"Agora/internal/wire"
	"context"
	"errors"
	"flag"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	configDir := flag.String("config", "./configs", "directory containing config.yaml")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}

	// 初始化日志
	logger.InitLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 数据库连接
	db, err := database.NewGormDB(ctx, cfg.DB)
	if err != nil {
		log.Error("Fatal error: failed to create database connection", "err", err)
		panic(err)
	}

	// Redis 连接，不可用时请求走数据库降级，不阻止启动
	rdb := redis.NewClient(cfg.Redis)
	defer func() { _ = rdb.Close() }()
	if err = redis.Ping(ctx, rdb); err != nil {
		log.Warn("Redis unavailable at startup, serving from database", "addr", cfg.Redis.Addr, "err", err)
	}

	// 依赖注入
	app, err := wire.BuildApplication(db, rdb, cfg)
	if err != nil {
		log.Error("Fatal error: failed to create application", "err", err)
		panic(err)
	}

	// 缓存预热
	if cfg.Bootstrap.Enable {
		bootCtx := logger.WithTraceID(ctx, "bootstrap")
		if _, err = app.Loader.Run(bootCtx, cfg.Bootstrap.Mode, cfg.Bootstrap.Limit); err != nil {
			log.ErrorContext(bootCtx, "Fatal error: bootstrap failed", "mode", cfg.Bootstrap.Mode, "err", err)
			panic(err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second

	// 定时任务
	if err = app.CronMgr.Init(); err != nil {
		log.Error("Fatal error: failed to start cron jobs", "err", err)
		panic(err)
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Cron Jobs stopping...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		app.CronMgr.Stop(stopCtx)
		return nil
	})

	// Kafka 消费者
	if app.KafkaManager != nil {
		g.Go(func() error {
			log.Info("Kafka Consumers starting...")
			return app.KafkaManager.Start(ctx)
		})
	}

	// HTTP 服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: app.Router,
	}
	g.Go(func() error {
		log.Info("HTTP Server starting...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 优雅退出
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case sig := <-quit:
			log.Info("Received signal, shutting down...", "signal", sig)
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		// 请求全部结束后再排空未读数写入队列
		app.MessageSvc.Close()
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("App exited with error", "err", err)
	}
	log.Info("App exited successfully.")
}
