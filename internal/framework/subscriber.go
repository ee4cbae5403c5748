package framework

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Subscriber 从任务队列拉取 swap 任务交给 Processor；未转发的任务不 ACK，由 TTR 到期重投
type Subscriber struct {
	cfg    *SubscriberConfig
	source MessageSource
	logger Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pulled      *atomic.Int64 // 成功转发的任务数
	redelivered *atomic.Int64 // 其中属于重投的任务数
}

// NewSubscriber 创建订阅者
func NewSubscriber(cfg *SubscriberConfig, source MessageSource, logger Logger) *Subscriber {
	return &Subscriber{
		cfg:         cfg,
		source:      source,
		logger:      logger,
		pulled:      atomic.NewInt64(0),
		redelivered: atomic.NewInt64(0),
	}
}

// Start 按 Concurrency 启动拉取协程
func (s *Subscriber) Start(parentCtx context.Context, out chan<- *Message) error {
	ctx, cancel := context.WithCancel(parentCtx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Infof(ctx, "[Subscriber] Pulling %s with %d consumers", s.cfg.QueueName, s.cfg.Concurrency)
	for i := 0; i < s.cfg.Concurrency; i++ {
		s.wg.Add(1)
		go s.run(ctx, i, out)
	}
	return nil
}

// Stop 停止拉取新任务
func (s *Subscriber) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait 等待所有拉取协程退出
func (s *Subscriber) Wait() {
	s.wg.Wait()
	s.logger.Infof(context.Background(), "[Subscriber] %s stopped, pulled=%d redelivered=%d",
		s.cfg.QueueName, s.pulled.Load(), s.redelivered.Load())
}

// Pulled 已转发任务数
func (s *Subscriber) Pulled() int64 { return s.pulled.Load() }

// Redelivered 已转发任务中重投的数量
func (s *Subscriber) Redelivered() int64 { return s.redelivered.Load() }

func (s *Subscriber) run(ctx context.Context, id int, out chan<- *Message) {
	defer s.wg.Done()
	for ctx.Err() == nil {
		if !pause(ctx, s.pullOnce(ctx, id, out)) {
			return
		}
	}
}

// pullOnce 拉取并转发一个任务，返回下一次拉取前的等待时间
func (s *Subscriber) pullOnce(ctx context.Context, id int, out chan<- *Message) time.Duration {
	msg, err := s.source.Consume(s.cfg.QueueName, s.cfg.Timeout, s.cfg.TTR)
	if err != nil {
		s.logger.Warnf(ctx, "[Subscriber-%d] consume %s: %v", id, s.cfg.QueueName, err)
		return s.cfg.ErrorBackoff
	}
	if msg == nil {
		return 0
	}

	select {
	case out <- msg:
		s.pulled.Inc()
		if msg.Attempts > 1 {
			s.redelivered.Inc()
			s.logger.Infof(ctx, "[Subscriber-%d] job %s redelivered, attempt %d", id, msg.ID, msg.Attempts)
		}
		return s.cfg.Rate
	case <-ctx.Done():
		s.logger.Warnf(ctx, "[Subscriber-%d] job %s left for redelivery", id, msg.ID)
		return 0
	}
}

// pause 等待 d，ctx 取消时返回 false
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
