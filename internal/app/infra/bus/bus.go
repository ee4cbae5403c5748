package bus

import (
	"context"
	"sync"

	"swapd/internal/app/domains/entity/etorder"
)

// DefaultBuffer 单个订阅者的事件缓冲
const DefaultBuffer = 16

// Bus 订单状态发布/订阅（瞬时，不缓存，不重放）
// 同一 orderID 同一时刻最多一个订阅者，后来的订阅替换先前的订阅
type Bus interface {
	// Publish 投递给当前订阅者；没有订阅者时直接丢弃
	Publish(ctx context.Context, orderID string, ev etorder.StatusEvent) error
	// Subscribe 订阅 orderID，返回时订阅已生效
	Subscribe(ctx context.Context, orderID string) (*Subscription, error)
	// Unsubscribe 取消订阅，可重复调用
	Unsubscribe(sub *Subscription)
}

// Subscription 订阅句柄
// Events 永不关闭；Done 关闭表示订阅已结束（取消或被替换）
type Subscription struct {
	OrderID string

	events    chan etorder.StatusEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewSubscription 创建订阅句柄（供各 Bus 实现使用）
func NewSubscription(orderID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Subscription{
		OrderID: orderID,
		events:  make(chan etorder.StatusEvent, buffer),
		done:    make(chan struct{}),
	}
}

// Events 事件通道
func (s *Subscription) Events() <-chan etorder.StatusEvent {
	return s.events
}

// Done 订阅结束信号
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// DeliverResult 投递结果
type DeliverResult int

const (
	// Delivered 已写入缓冲
	Delivered DeliverResult = iota
	// Overflow 缓冲已满，事件丢弃
	Overflow
	// Ended 订阅已结束，事件无人接收
	Ended
)

// Deliver 非阻塞投递
// 只有 Overflow 表示订阅者跟不上，计入丢弃
func (s *Subscription) Deliver(ev etorder.StatusEvent) DeliverResult {
	select {
	case <-s.done:
		return Ended
	default:
	}

	select {
	case s.events <- ev:
		return Delivered
	default:
		return Overflow
	}
}

// Close 结束订阅
func (s *Subscription) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
