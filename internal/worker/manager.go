package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"swapd/internal/app/pkg/logger"
	"swapd/internal/framework"
)

// Manager 接口
type Manager interface {
	Start() error
	Shutdown()
}

// Spec 单个 Worker 的配置
type Spec struct {
	Name       string
	Subscriber framework.SubscriberConfig
	Processor  framework.ProcessorConfig
}

// ManagerInstance Manager 实例
type ManagerInstance struct {
	ctx        context.Context
	workers    []Worker
	closing    *atomic.Bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	logger     logger.Logger
}

// NewManagerInstance 创建 Manager，所有 Worker 共享同一个消息源和处理函数
func NewManagerInstance(
	specs []Spec,
	source framework.MessageSource,
	proc framework.Proc,
	log logger.Logger,
) (Manager, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one worker is required")
	}

	m := &ManagerInstance{
		ctx:        context.Background(),
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		workers:    make([]Worker, 0, len(specs)),
		logger:     log,
	}

	if err := m.loadWorkers(specs, source, proc); err != nil {
		return nil, fmt.Errorf("failed to load workers: %w", err)
	}
	return m, nil
}

// Start 启动所有 Worker，阻塞直到 Shutdown
func (m *ManagerInstance) Start() error {
	m.logger.Infof(m.ctx, "[Manager] Starting %d workers...", len(m.workers))

	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.Start()
		}()
		m.logger.Infof(m.ctx, "[Manager] Worker started: %s", w.GetName())
	}

	m.logger.Infof(m.ctx, "[Manager] Start success")

	<-m.shutdownCh
	return nil
}

// Shutdown 优雅退出，可重复调用
func (m *ManagerInstance) Shutdown() {
	if !m.closing.CAS(false, true) {
		return
	}
	m.logger.Infof(m.ctx, "[Manager] Began to close")

	// 1. 所有 Worker 安全退出
	for _, worker := range m.workers {
		m.logger.Infof(m.ctx, "[Manager] Shutting down worker: %s", worker.GetName())
		worker.Shutdown()
	}

	// 2. 等待所有 Worker 退出
	m.wg.Wait()

	// 3. 关闭信号通道
	close(m.shutdownCh)

	m.logger.Infof(m.ctx, "[Manager] Shutdown complete")
}

// loadWorkers 加载所有 Worker
func (m *ManagerInstance) loadWorkers(specs []Spec, source framework.MessageSource, proc framework.Proc) error {
	for i := range specs {
		spec := specs[i]
		subCfg := spec.Subscriber
		procCfg := spec.Processor

		worker, err := NewWorkerInstance(m.ctx, spec.Name, &subCfg, &procCfg, source, proc, m.logger)
		if err != nil {
			return fmt.Errorf("failed to create worker %s: %w", spec.Name, err)
		}
		m.workers = append(m.workers, worker)
	}
	return nil
}
