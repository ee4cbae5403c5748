package svpipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/domains/repo/rporder"
	"swapd/internal/app/infra/bus"
	"swapd/internal/app/infra/venue"
	"swapd/internal/app/pkg/errorx"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
	"swapd/internal/common/model"
)

// Executor 单个 Job 的流水线执行器
// pending -> routing -> building -> submitted -> confirmed | failed
// 每次阶段迁移依次执行：持久化快照，然后发布状态事件
type Executor struct {
	repo     rporder.OrderRepository
	bus      bus.Bus
	exchange venue.Exchange
	logger   logger.Logger
	metrics  *metrics.Metrics
}

// NewExecutor 创建执行器
func NewExecutor(
	repo rporder.OrderRepository,
	b bus.Bus,
	exchange venue.Exchange,
	log logger.Logger,
	m *metrics.Metrics,
) *Executor {
	return &Executor{
		repo:     repo,
		bus:      b,
		exchange: exchange,
		logger:   log,
		metrics:  m,
	}
}

// Run 执行一个 Job 直到终态
// 返回可重试错误时（errorx.Retryable），队列应重新投递；其余情况 Job 已处理完毕
func (e *Executor) Run(ctx context.Context, job model.SwapJob) error {
	ctx = logger.WithOrderID(ctx, job.OrderID)

	order, err := e.repo.GetByID(ctx, job.OrderID)
	if err != nil {
		if errors.Is(err, errorx.ErrOrderNotFound) {
			e.logger.Errorf(ctx, "[Pipeline] no durable record for job, dropping")
			return err
		}
		return errorx.Retriable(fmt.Errorf("load order: %w", err))
	}

	// 重复投递：已有其他执行者推进过
	if order.Stage != etorder.StagePending {
		e.logger.Infof(ctx, "[Pipeline] order already %s, skipping duplicate job", order.Stage)
		return nil
	}

	start := time.Now()
	err = e.pipeline(ctx, order)
	outcome := string(order.Stage)

	switch {
	case err == nil:
	case errors.Is(err, errorx.ErrInvalidTransition):
		// 其他执行者抢先写入，放弃本次执行，不写 failed
		outcome = "aborted"
		e.logger.Errorf(ctx, "[Pipeline] aborted at %s: %v", order.Stage, err)
		err = nil
	case order.Stage == etorder.StagePending && !isExecutionError(err):
		// 第一次写入就失败（存储不可达），保持 pending 等待重新投递
		outcome = "released"
		e.logger.Warnf(ctx, "[Pipeline] could not start: %v", err)
		err = errorx.Retriable(err)
	default:
		err = e.fail(ctx, order, err)
		outcome = string(order.Stage)
	}

	e.metrics.PipelineDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return err
}

// pipeline 顺序推进各阶段，任一步出错立即返回
func (e *Executor) pipeline(ctx context.Context, order *etorder.Order) error {
	req := order.Request

	if err := e.advance(ctx, order, etorder.StageRouting, etorder.Payload{}, ""); err != nil {
		return err
	}

	quotes, best, err := e.route(ctx, req)
	if err != nil {
		return err
	}
	e.logger.Infof(ctx, "[Pipeline] routing decision: %s %s at %.4f, quotes=%v",
		req.Pair(), best.Venue, best.Price, quotes)

	msg := fmt.Sprintf("Building transaction on %s at %.4f", best.Venue, best.Price)
	if err := e.advance(ctx, order, etorder.StageBuilding, etorder.Payload{Quotes: quotes}, msg); err != nil {
		return err
	}

	if err := e.advance(ctx, order, etorder.StageSubmitted, etorder.Payload{}, ""); err != nil {
		return err
	}

	receipt, err := e.exchange.Execute(ctx, best.Venue, req.Pair(), req.Amount, best.Price)
	if err != nil {
		return &errorx.ExecutionError{Stage: string(etorder.StageSubmitted), Venue: best.Venue, Err: err}
	}

	result := &etorder.Result{Venue: best.Venue, Price: receipt.ExecutedPrice, Receipt: receipt.TxHash}
	return e.advance(ctx, order, etorder.StageConfirmed, etorder.Payload{Result: result}, "")
}

// route 并发向所有场所询价，任一失败则路由失败
func (e *Executor) route(ctx context.Context, req etorder.Request) ([]etorder.Quote, etorder.Quote, error) {
	venues := e.exchange.Venues()
	quotes := make([]etorder.Quote, len(venues))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range venues {
		g.Go(func() error {
			price, err := e.exchange.Quote(gctx, name, req.Pair(), req.Amount)
			if err != nil {
				return &errorx.ExecutionError{Stage: string(etorder.StageRouting), Venue: name, Err: err}
			}
			quotes[i] = etorder.Quote{Venue: name, Price: price}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, etorder.Quote{}, err
	}

	best, err := SelectBest(quotes)
	if err != nil {
		return nil, etorder.Quote{}, err
	}
	return quotes, best, nil
}

// SelectBest 选择数值最大的报价，价格相同时取靠前的场所
func SelectBest(quotes []etorder.Quote) (etorder.Quote, error) {
	if len(quotes) == 0 {
		return etorder.Quote{}, &errorx.ExecutionError{
			Stage: string(etorder.StageRouting),
			Err:   errors.New("no venue available"),
		}
	}

	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.Price > best.Price {
			best = q
		}
	}
	return best, nil
}

// advance 迁移阶段：先持久化，再发布
// 持久化失败时 order 保持原样
func (e *Executor) advance(ctx context.Context, order *etorder.Order, to etorder.Stage, p etorder.Payload, message string) error {
	next := order.Clone()
	if err := next.Transition(to, p); err != nil {
		return err
	}

	if err := e.repo.Upsert(ctx, next); err != nil {
		if errors.Is(err, errorx.ErrInvalidTransition) {
			return err
		}
		return fmt.Errorf("persist %s: %w", to, err)
	}
	*order = *next

	e.metrics.StageTransitions.WithLabelValues(string(to)).Inc()
	e.logger.Infof(ctx, "[Pipeline] stage -> %s", to)

	// 快照已落库，事件丢失不影响正确性
	if err := e.bus.Publish(ctx, order.ID, order.Event(message)); err != nil {
		e.logger.Warnf(ctx, "[Pipeline] publish %s failed: %v", to, err)
	}
	return nil
}

// fail 写入 failed 终态，Job 超时或取消时仍需落库
func (e *Executor) fail(ctx context.Context, order *etorder.Order, cause error) error {
	ctx = context.WithoutCancel(ctx)
	e.logger.Warnf(ctx, "[Pipeline] failing order at %s: %v", order.Stage, cause)

	if err := e.advance(ctx, order, etorder.StageFailed, etorder.Payload{Error: cause.Error()}, ""); err != nil {
		e.logger.Errorf(ctx, "[Pipeline] could not record failure: %v", err)
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

func isExecutionError(err error) bool {
	var ee *errorx.ExecutionError
	return errors.As(err, &ee)
}
