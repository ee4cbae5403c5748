package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"swapd/internal/app/bootstrap"
	"swapd/internal/app/config"
	"swapd/internal/app/domains/repo/rporder"
	"swapd/internal/app/infra/persistence/database"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
)

var (
	configPath = flag.String("config", "./config/config.yaml", "配置文件路径")
)

// 独立 worker 进程：lmstfy 拉取 Job，通过 Redis 总线发布状态
func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	// 独立进程只能使用跨进程实现
	cfg.Worker.Embedded = false
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	// 2. 初始化 Logger
	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()
	zapLogger.Infof(ctx, "[Main] Config loaded: %s, env: %s, queue: %s", cfg.App.Name, cfg.App.Env, cfg.Lmstfy.Queue)

	// 3. 初始化依赖
	db, err := database.Open(database.Config{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		AutoMigrate: cfg.Database.AutoMigrate,
	})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	statusBus, closeBus, err := bootstrap.NewBus(ctx, cfg, zapLogger, m)
	if err != nil {
		log.Fatalf("Failed to create status bus: %v", err)
	}
	defer closeBus()

	queue, err := bootstrap.NewJobQueue(cfg)
	if err != nil {
		log.Fatalf("Failed to create job queue: %v", err)
	}

	// 4. 创建 Manager
	mgr, err := bootstrap.NewWorkerManager(cfg, rporder.NewOrderRepository(db), statusBus, queue, zapLogger, m)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	// 5. 启动 Manager（goroutine）
	go func() {
		if err := mgr.Start(); err != nil {
			log.Fatalf("Manager start failed: %v", err)
		}
	}()

	zapLogger.Infof(ctx, "[Main] Worker started. Press Ctrl+C to shutdown.")

	// 6. 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	zapLogger.Infof(ctx, "[Main] Received signal %v, shutting down worker...", sig)

	// 7. 优雅关闭 Manager，在途 Job 执行到终态
	mgr.Shutdown()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zapLogger.Infof(ctx, "[Main] Worker exited gracefully")
}
