package svorder

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/domains/modules/mdswap"
	"swapd/internal/app/domains/repo/rporder"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
)

// OrderService 订单服务，负责提交与查询
type OrderService struct {
	repo       rporder.OrderRepository
	swapModule *mdswap.SwapModule
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// NewOrderService 创建订单服务实例
func NewOrderService(
	repo rporder.OrderRepository,
	swapModule *mdswap.SwapModule,
	log logger.Logger,
	m *metrics.Metrics,
) *OrderService {
	return &OrderService{
		repo:       repo,
		swapModule: swapModule,
		logger:     log,
		metrics:    m,
	}
}

// Submit 提交订单
// 1. 校验请求并分配 ID
// 2. 同步写入 pending 快照（失败则整体失败，不入队）
// 3. 投递工作项
// 入队失败时客户端拿不到 orderId，记录尽力改写为 failed，对账任务不会再执行它；
// 只有在两步之间进程崩溃遗留的 pending 才由对账任务补投递
func (s *OrderService) Submit(ctx context.Context, req etorder.Request) (string, error) {
	order, err := etorder.NewOrder(uuid.New().String(), req)
	if err != nil {
		return "", err
	}
	ctx = logger.WithOrderID(ctx, order.ID)

	if err := s.repo.Upsert(ctx, order); err != nil {
		s.logger.Errorf(ctx, "[OrderService] save pending record failed: %v", err)
		return "", fmt.Errorf("save order failed: %w", err)
	}

	if err := s.swapModule.PublishSwapJob(ctx, order); err != nil {
		s.logger.Errorf(ctx, "[OrderService] enqueue failed: %v", err)
		s.abandon(ctx, order, err)
		return "", fmt.Errorf("enqueue order failed: %w", err)
	}

	s.metrics.OrdersSubmitted.Inc()
	s.logger.Infof(ctx, "[OrderService] order submitted: %s", order.Request.Pair())
	return order.ID, nil
}

// abandon 入队失败后把 pending 记录终结为 failed
// 写失败只记录日志：遗留的 pending 由对账任务兜底
func (s *OrderService) abandon(ctx context.Context, order *etorder.Order, cause error) {
	ctx = context.WithoutCancel(ctx)

	next := order.Clone()
	if err := next.Transition(etorder.StageFailed, etorder.Payload{Error: "enqueue failed: " + cause.Error()}); err != nil {
		s.logger.Errorf(ctx, "[OrderService] abandon order: %v", err)
		return
	}
	if err := s.repo.Upsert(ctx, next); err != nil {
		s.logger.Errorf(ctx, "[OrderService] mark order failed after enqueue error: %v", err)
		return
	}
	s.metrics.StageTransitions.WithLabelValues(string(etorder.StageFailed)).Inc()
}

// GetOrder 查询订单快照
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*etorder.Order, error) {
	return s.repo.GetByID(ctx, orderID)
}
