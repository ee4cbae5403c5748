package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swapd/internal/app/config"
)

var (
	configPath = flag.String("config", "./config/config.yaml", "配置文件路径，为空时只使用默认值和环境变量")
)

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	// 2. 初始化应用（HTTP Server、内嵌 Worker、对账任务）
	app, cleanup, err := InitializeApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer cleanup()

	ctx := context.Background()

	// 3. 创建 HTTP Server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: app.Engine,
	}

	// 4. 启动内嵌 Worker（后台 goroutine）
	managerErrChan := make(chan error, 1)
	if app.Manager != nil {
		go func() {
			managerErrChan <- app.Manager.Start()
		}()
	}

	// 5. 启动对账任务
	if app.Reconciler != nil {
		if err := app.Reconciler.Start(ctx); err != nil {
			log.Fatalf("Failed to start reconciler: %v", err)
		}
	}

	// 6. 启动 HTTP Server（后台 goroutine）
	serverErrChan := make(chan error, 1)
	go func() {
		app.Logger.Infof(ctx, "[Main] Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 7. 优雅停机处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		app.Logger.Infof(ctx, "[Main] Received signal %v, gracefully shutting down...", sig)
	case err := <-serverErrChan:
		app.Logger.Errorf(ctx, "[Main] HTTP server error: %v", err)
	case err := <-managerErrChan:
		if err != nil {
			app.Logger.Errorf(ctx, "[Main] Worker manager error: %v", err)
		}
	}

	gracefulShutdown(ctx, app, server)
	app.Logger.Infof(ctx, "[Main] Application stopped")
}

// gracefulShutdown 优雅停机
// 1. 停止接收新请求  2. 关闭推送连接  3. 停止对账  4. 在途 Job 执行到终态
func gracefulShutdown(ctx context.Context, app *App, server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Warnf(ctx, "[Main] HTTP server shutdown error: %v", err)
	}

	// 升级后的连接不受 server.Shutdown 管理，单独关闭
	app.Registry.Shutdown()

	if app.Reconciler != nil {
		if err := app.Reconciler.Stop(shutdownCtx); err != nil {
			app.Logger.Warnf(ctx, "[Main] Reconciler stop error: %v", err)
		}
	}

	if app.Manager != nil {
		app.Manager.Shutdown()
	}

	app.Logger.Infof(ctx, "[Main] All services stopped gracefully")
}
