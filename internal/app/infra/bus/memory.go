package bus

import (
	"context"
	"sync"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
)

// Memory 进程内 Bus 实现，仅在 API 与 worker 同进程时可用
type Memory struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	buffer  int
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewMemory 创建进程内 Bus
func NewMemory(log logger.Logger, m *metrics.Metrics) *Memory {
	return &Memory{
		subs:    make(map[string]*Subscription),
		buffer:  DefaultBuffer,
		logger:  log,
		metrics: m,
	}
}

// Publish 投递事件给当前订阅者
func (b *Memory) Publish(ctx context.Context, orderID string, ev etorder.StatusEvent) error {
	b.mu.RLock()
	sub := b.subs[orderID]
	b.mu.RUnlock()

	if sub == nil {
		b.logger.Debugf(ctx, "[Bus] no subscriber for %s, stage=%s dropped", orderID, ev.Stage)
		return nil
	}
	switch sub.Deliver(ev) {
	case Overflow:
		b.metrics.LiveDropped.Inc()
		b.logger.Warnf(ctx, "[Bus] subscriber buffer full for %s, stage=%s dropped", orderID, ev.Stage)
	case Ended:
		b.logger.Debugf(ctx, "[Bus] subscription for %s already ended, stage=%s ignored", orderID, ev.Stage)
	}
	return nil
}

// Subscribe 订阅 orderID，已有订阅者时替换之
func (b *Memory) Subscribe(ctx context.Context, orderID string) (*Subscription, error) {
	sub := NewSubscription(orderID, b.buffer)

	b.mu.Lock()
	old := b.subs[orderID]
	b.subs[orderID] = sub
	b.mu.Unlock()

	if old != nil {
		old.Close()
		b.logger.Infof(ctx, "[Bus] subscription for %s replaced", orderID)
	}
	return sub, nil
}

// Unsubscribe 取消订阅；已被替换的句柄不影响新的订阅
func (b *Memory) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	if b.subs[sub.OrderID] == sub {
		delete(b.subs, sub.OrderID)
	}
	b.mu.Unlock()

	sub.Close()
}

// Len 当前订阅数
func (b *Memory) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
