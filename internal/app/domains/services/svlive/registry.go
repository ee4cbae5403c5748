package svlive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/infra/bus"
	"swapd/internal/app/pkg/errorx"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
)

// 关闭原因，随关闭帧发给客户端
const (
	ReasonTerminal     = "order reached terminal stage"
	ReasonSuperseded   = "superseded"
	ReasonDisconnected = "client disconnected"
	ReasonShutdown     = "server shutting down"
	ReasonSendFailed   = "send failed"
	ReasonUnavailable  = "status channel unavailable"
)

// ErrSendFailed 写客户端失败，通常是客户端已经断开
var ErrSendFailed = errors.New(ReasonSendFailed)

var (
	errSuperseded = errors.New(ReasonSuperseded)
	errShutdown   = errors.New(ReasonShutdown)
)

// State 连接会话状态
type State string

const (
	StateAttached   State = "attached"
	StateSnapshot   State = "serving-terminal-snapshot"
	StateSubscribed State = "subscribed"
	StateDelivering State = "delivering"
	StateClosed     State = "closed"
)

// Sink 单个客户端的投递通道（WebSocket 连接）
type Sink interface {
	Send(ctx context.Context, ev etorder.StatusEvent) error
	Close(reason string) error
}

// SnapshotReader 快照读取（rporder.OrderRepository 的只读子集）
type SnapshotReader interface {
	GetByID(ctx context.Context, orderID string) (*etorder.Order, error)
}

// Config 会话配置
type Config struct {
	TerminalGrace time.Duration // 终态消息发出后到关闭连接的等待
}

// Registry 连接注册表：orderId -> 至多一个活跃会话
// 同一 orderId 的后来者替换先前的会话，旧连接以 superseded 关闭
type Registry struct {
	store   SnapshotReader
	bus     bus.Bus
	cfg     Config
	logger  logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	orderID string
	cancel  context.CancelCauseFunc
	state   State
}

// NewRegistry 创建连接注册表
func NewRegistry(store SnapshotReader, b bus.Bus, cfg Config, log logger.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		store:    store,
		bus:      b,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		sessions: make(map[string]*session),
	}
}

// Attach 绑定客户端到订单，阻塞直到会话结束
// 1. 读快照，终态则发送一次后关闭，不订阅
// 2. 否则注册会话并订阅，再次读快照后发送当前阶段
// 3. 转发后续事件，终态事件发出后等待 TerminalGrace 再关闭
// ctx 取消即视为客户端断开，立即拆除订阅
func (r *Registry) Attach(ctx context.Context, orderID string, sink Sink) error {
	if orderID == "" {
		return errorx.NewValidationError("orderId", "orderId is required")
	}
	ctx = logger.WithOrderID(ctx, orderID)

	order, err := r.store.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Stage.IsTerminal() {
		r.logger.Infof(ctx, "[Live] %s -> %s (%s)", StateAttached, StateSnapshot, order.Stage)
		if err := sink.Send(ctx, order.Event("")); err != nil {
			_ = sink.Close(ReasonSendFailed)
			return fmt.Errorf("%w: terminal snapshot: %w", ErrSendFailed, err)
		}
		return sink.Close(ReasonTerminal)
	}

	return r.serve(ctx, orderID, sink)
}

func (r *Registry) serve(parent context.Context, orderID string, sink Sink) error {
	ctx, cancel := context.WithCancelCause(parent)
	s := &session{orderID: orderID, cancel: cancel, state: StateAttached}
	r.register(ctx, s)

	reason := ReasonDisconnected
	var sub *bus.Subscription
	defer func() {
		if sub != nil {
			r.bus.Unsubscribe(sub)
		}
		r.unregister(s)
		cancel(nil)
		_ = sink.Close(reason)
		r.logger.Infof(ctx, "[Live] session closed: %s", reason)
	}()

	sub, err := r.bus.Subscribe(ctx, orderID)
	if err != nil {
		reason = ReasonUnavailable
		return fmt.Errorf("subscribe: %w", err)
	}
	r.setState(ctx, s, StateSubscribed)

	// 订阅之后再读一次，订阅之前发生的迁移以快照为准
	order, err := r.store.GetByID(ctx, orderID)
	if err != nil {
		reason = ReasonUnavailable
		return err
	}
	if err := sink.Send(ctx, order.Event("")); err != nil {
		reason = ReasonSendFailed
		return fmt.Errorf("%w: current stage: %w", ErrSendFailed, err)
	}
	last := order.Stage
	if last.IsTerminal() {
		reason = ReasonTerminal
		return nil
	}
	r.setState(ctx, s, StateDelivering)

	for {
		select {
		case <-ctx.Done():
			reason = closeReason(ctx)
			return nil

		case <-sub.Done():
			// 总线侧被替换
			reason = ReasonSuperseded
			return nil

		case ev := <-sub.Events():
			if !ev.Stage.After(last) {
				continue
			}
			if err := sink.Send(ctx, ev); err != nil {
				reason = ReasonSendFailed
				return fmt.Errorf("%w: %s: %w", ErrSendFailed, ev.Stage, err)
			}
			last = ev.Stage

			if last.IsTerminal() {
				reason = ReasonTerminal
				r.linger(ctx)
				return nil
			}
		}
	}
}

// linger 终态消息发出后短暂等待，让客户端收完数据
func (r *Registry) linger(ctx context.Context) {
	if r.cfg.TerminalGrace <= 0 {
		return
	}
	t := time.NewTimer(r.cfg.TerminalGrace)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// register 登记会话，替换同 orderId 的旧会话
func (r *Registry) register(ctx context.Context, s *session) {
	r.mu.Lock()
	old := r.sessions[s.orderID]
	r.sessions[s.orderID] = s
	r.mu.Unlock()

	r.metrics.LiveSessions.Inc()
	if old != nil {
		old.cancel(errSuperseded)
		r.logger.Infof(ctx, "[Live] previous session superseded")
	}
}

func (r *Registry) unregister(s *session) {
	r.mu.Lock()
	if r.sessions[s.orderID] == s {
		delete(r.sessions, s.orderID)
	}
	s.state = StateClosed
	r.mu.Unlock()

	r.metrics.LiveSessions.Dec()
}

func (r *Registry) setState(ctx context.Context, s *session, to State) {
	r.mu.Lock()
	from := s.state
	s.state = to
	r.mu.Unlock()

	r.logger.Debugf(ctx, "[Live] %s -> %s", from, to)
}

// Active 活跃会话数
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StateOf 会话当前状态（调试与测试）
func (r *Registry) StateOf(orderID string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[orderID]
	if !ok {
		return "", false
	}
	return s.state, true
}

// Shutdown 关闭所有会话
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.cancel(errShutdown)
	}
}

func closeReason(ctx context.Context) string {
	switch cause := context.Cause(ctx); {
	case errors.Is(cause, errSuperseded):
		return ReasonSuperseded
	case errors.Is(cause, errShutdown):
		return ReasonShutdown
	default:
		return ReasonDisconnected
	}
}
