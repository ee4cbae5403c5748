package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"swapd/internal/app/bootstrap"
	"swapd/internal/app/config"
	"swapd/internal/app/domains/modules/mdswap"
	"swapd/internal/app/domains/repo/rporder"
	"swapd/internal/app/domains/services/svlive"
	"swapd/internal/app/domains/services/svorder"
	"swapd/internal/app/domains/services/svreconcile"
	"swapd/internal/app/infra/persistence/database"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
	"swapd/internal/app/server/handlers/order"
	"swapd/internal/app/server/routers"
	"swapd/internal/worker"
)

// App 应用实例
type App struct {
	Engine     *gin.Engine
	Registry   *svlive.Registry
	Reconciler *svreconcile.Service // reconcile.enabled=false 时为 nil
	Manager    worker.Manager       // worker.embedded=false 时为 nil
	Logger     logger.Logger
}

// InitializeApp 装配所有依赖
// cleanup 释放数据库和 Redis 连接，需在各组件停止之后调用
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	ctx := context.Background()

	log, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	db, err := database.Open(database.Config{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		AutoMigrate: cfg.Database.AutoMigrate,
	})
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	statusBus, closeBus, err := bootstrap.NewBus(ctx, cfg, log, m)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	cleanup := func() {
		closeBus()
		closeDB()
		_ = log.Sync()
	}

	queue, err := bootstrap.NewJobQueue(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	repo := rporder.NewOrderRepository(db)
	swapModule := mdswap.NewSwapModule(queue, cfg.Lmstfy.Queue)
	orderService := svorder.NewOrderService(repo, swapModule, log, m)
	registry := svlive.NewRegistry(repo, statusBus, svlive.Config{TerminalGrace: cfg.Live.TerminalGrace}, log, m)

	app := &App{Registry: registry, Logger: log}

	if cfg.Worker.Embedded {
		app.Manager, err = bootstrap.NewWorkerManager(cfg, repo, statusBus, queue, log, m)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	if cfg.Reconcile.Enabled {
		app.Reconciler = svreconcile.NewService(repo, swapModule, svreconcile.Config{
			Schedule:     cfg.Reconcile.Schedule,
			PendingAfter: cfg.Reconcile.PendingAfter,
			BatchSize:    cfg.Reconcile.BatchSize,
		}, log, m)
	}

	orderHandler := order.NewOrderHandler(orderService, registry, order.StreamConfig{
		WriteTimeout: cfg.Live.WriteTimeout,
		PingInterval: cfg.Live.PingInterval,
	}, log)
	app.Engine = routers.SetupRoutes(orderHandler, log.Zap(), reg)

	return app, cleanup, nil
}
