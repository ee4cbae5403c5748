package worker

import (
	"context"
	"sync"

	"swapd/internal/app/pkg/logger"
	"swapd/internal/framework"
)

// Worker 一条 swap 任务流水线的生命周期
type Worker interface {
	Start()
	Shutdown()
	GetName() string
}

// Stats 流水线拉取统计
type Stats struct {
	Pulled      int64
	Redelivered int64
}

// WorkerInstance 队列 → Subscriber → 缓冲 → Processor(N)
type WorkerInstance struct {
	ctx        context.Context
	name       string
	subscriber *framework.Subscriber
	processor  *framework.Processor
	jobs       chan *framework.Message
	logger     logger.Logger

	mu       sync.Mutex // 串行化启动与关闭
	started  bool
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWorkerInstance 创建 Worker，proc 决定每个任务的 ACK 方式
func NewWorkerInstance(
	ctx context.Context,
	name string,
	subscriberCfg *framework.SubscriberConfig,
	processorCfg *framework.ProcessorConfig,
	source framework.MessageSource,
	proc framework.Proc,
	log logger.Logger,
) (Worker, error) {
	return &WorkerInstance{
		ctx:        ctx,
		name:       name,
		subscriber: framework.NewSubscriber(subscriberCfg, source, log),
		processor:  framework.NewProcessor(processorCfg, proc, source, log),
		jobs:       make(chan *framework.Message, processorCfg.BufferSize),
		logger:     log,
		stopped:    make(chan struct{}),
	}, nil
}

// Start 启动流水线并阻塞到 Shutdown 完成；已关闭或已启动时直接返回
func (w *WorkerInstance) Start() {
	w.mu.Lock()
	select {
	case <-w.stopped:
		w.mu.Unlock()
		return
	default:
	}
	if w.started {
		w.mu.Unlock()
		<-w.stopped
		return
	}
	w.started = true

	// Processor 先于 Subscriber 启动，保证转发出的任务有人消费
	_ = w.processor.Start(w.ctx, w.jobs)
	_ = w.subscriber.Start(w.ctx, w.jobs)
	w.mu.Unlock()
	w.logger.Infof(w.ctx, "[Worker] %s started", w.name)

	<-w.stopped
}

// Shutdown 停止拉取后排空缓冲，在途任务执行到终态；可重复调用，也可在 Start 之前调用
func (w *WorkerInstance) Shutdown() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if !w.started {
			// 从未启动，没有协程需要等待
			close(w.stopped)
			w.logger.Infof(w.ctx, "[Worker] %s closed before start", w.name)
			return
		}

		w.subscriber.Stop()
		w.subscriber.Wait()
		w.processor.SignalShutdown()
		w.processor.Wait()

		close(w.stopped)
		st := w.Stats()
		w.logger.Infof(w.ctx, "[Worker] %s shutdown complete, pulled=%d redelivered=%d",
			w.name, st.Pulled, st.Redelivered)
	})
}

// Stats 当前拉取统计
func (w *WorkerInstance) Stats() Stats {
	return Stats{
		Pulled:      w.subscriber.Pulled(),
		Redelivered: w.subscriber.Redelivered(),
	}
}

// GetName 获取 Worker 名称
func (w *WorkerInstance) GetName() string {
	return w.name
}
