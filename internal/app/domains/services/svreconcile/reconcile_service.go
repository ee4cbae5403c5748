package svreconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
)

// StaleStore 查询长时间停留在 pending 的订单，并在补投递后刷新其 updated_at
type StaleStore interface {
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*etorder.Order, error)
	TouchPending(ctx context.Context, orderID string, at time.Time) (bool, error)
}

// Requeuer 重新投递工作项（mdswap.SwapModule）
type Requeuer interface {
	PublishSwapJob(ctx context.Context, order *etorder.Order) error
}

// Config 对账配置
type Config struct {
	Schedule     string        // cron 表达式，如 "@every 30s"
	PendingAfter time.Duration // pending 超过该时长视为入队丢失
	BatchSize    int
}

// Service 对账服务：补投递入队失败后遗留的 pending 订单
// 重复投递由执行器的快照检查和存储层迁移校验兜底
type Service struct {
	store    StaleStore
	requeuer Requeuer
	cfg      Config
	logger   logger.Logger
	metrics  *metrics.Metrics
	cron     *cron.Cron
	now      func() time.Time
}

// NewService 创建对账服务
func NewService(store StaleStore, requeuer Requeuer, cfg Config, log logger.Logger, m *metrics.Metrics) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	adapter := &cronLogger{logger: log}
	return &Service{
		store:    store,
		requeuer: requeuer,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		now: time.Now,
	}
}

// Sweep 执行一次对账，返回重新投递的订单数
func (s *Service) Sweep(ctx context.Context) (int, error) {
	before := s.now().Add(-s.cfg.PendingAfter)
	orders, err := s.store.ListStalePending(ctx, before, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale pending: %w", err)
	}

	requeued := 0
	for _, order := range orders {
		octx := logger.WithOrderID(ctx, order.ID)
		if err := s.requeuer.PublishSwapJob(octx, order); err != nil {
			s.logger.Warnf(octx, "[Reconcile] requeue failed: %v", err)
			continue
		}
		requeued++
		s.metrics.Requeued.Inc()
		s.logger.Infof(octx, "[Reconcile] requeued order pending since %s", order.UpdatedAt.Format(time.RFC3339))

		// 刷新 updated_at：worker 积压时，下个周期不再重复投递同一订单
		if _, err := s.store.TouchPending(octx, order.ID, s.now()); err != nil {
			s.logger.Warnf(octx, "[Reconcile] touch requeued order failed: %v", err)
		}
	}
	return requeued, nil
}

// Start 按 Schedule 周期执行 Sweep
func (s *Service) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Errorf(ctx, "[Reconcile] sweep failed: %v", err)
			return
		}
		if n > 0 {
			s.logger.Infof(ctx, "[Reconcile] sweep requeued %d orders", n)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	s.logger.Infof(ctx, "[Reconcile] scheduled: %s, pending_after=%v", s.cfg.Schedule, s.cfg.PendingAfter)
	return nil
}

// Stop 停止调度，等待正在执行的 Sweep 结束
func (s *Service) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 适配 cron.Logger
type cronLogger struct {
	logger logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugf(context.Background(), "[Cron] %s %v", msg, keysAndValues)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorf(context.Background(), "[Cron] %s: %v %v", msg, err, keysAndValues)
}
