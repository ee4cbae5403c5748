package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"swapd/internal/app/config"
	"swapd/internal/app/domains/modules/mdswap"
	"swapd/internal/app/domains/repo/rporder"
	"swapd/internal/app/domains/services/svpipeline"
	"swapd/internal/app/infra/bus"
	"swapd/internal/app/infra/mq/lmstfy"
	"swapd/internal/app/infra/mq/memqueue"
	infraredis "swapd/internal/app/infra/persistence/redis"
	"swapd/internal/app/infra/venue"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
	"swapd/internal/domains"
	"swapd/internal/framework"
	"swapd/internal/worker"
)

// memQueueBuffer 进程内队列容量，写满后提交返回 ErrQueueUnavailable
const memQueueBuffer = 1024

// JobQueue 工作队列：API 侧发布，worker 侧消费
type JobQueue interface {
	mdswap.JobPublisher
	framework.MessageSource
}

// NewJobQueue 按 queue.driver 创建工作队列
func NewJobQueue(cfg *config.Config) (JobQueue, error) {
	switch cfg.Queue.Driver {
	case "memory":
		return memqueue.New(memQueueBuffer), nil
	case "lmstfy":
		return lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token, lmstfy.Options{
			TTL:   cfg.Lmstfy.TTL,
			Tries: cfg.Lmstfy.Tries,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", cfg.Queue.Driver)
	}
}

// NewBus 按 bus.driver 创建状态总线，返回的 cleanup 释放底层连接
func NewBus(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Metrics) (bus.Bus, func(), error) {
	switch cfg.Bus.Driver {
	case "memory":
		return bus.NewMemory(log, m), func() {}, nil
	case "redis":
		rdb, err := infraredis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		ps := infraredis.NewPubSubClient(rdb, log, m)
		return ps, func() { closeRedis(ctx, ps, rdb, log) }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported bus driver: %s", cfg.Bus.Driver)
	}
}

func closeRedis(ctx context.Context, ps *infraredis.PubSubClient, rdb *goredis.Client, log logger.Logger) {
	if err := ps.Close(); err != nil {
		log.Warnf(ctx, "[Bootstrap] close redis subscriptions failed: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Warnf(ctx, "[Bootstrap] close redis client failed: %v", err)
	}
}

// NewExchange 模拟交易场所
func NewExchange(cfg *config.Config) venue.Exchange {
	mc := venue.DefaultMockConfig()
	mc.Names = cfg.Venue.Names
	mc.BasePrice = cfg.Venue.BasePrice
	mc.Spread = cfg.Venue.Spread
	mc.QuoteDelay = cfg.Venue.QuoteDelay
	mc.ExecuteDelayMin = cfg.Venue.ExecuteDelayMin
	mc.ExecuteDelayMax = cfg.Venue.ExecuteDelayMax
	mc.FailRate = cfg.Venue.FailRate
	return venue.NewMock(mc)
}

// NewWorkerManager 装配流水线执行器和 worker
func NewWorkerManager(
	cfg *config.Config,
	repo rporder.OrderRepository,
	statusBus bus.Bus,
	source framework.MessageSource,
	log logger.Logger,
	m *metrics.Metrics,
) (worker.Manager, error) {
	executor := svpipeline.NewExecutor(repo, statusBus, NewExchange(cfg), log, m)
	proc := domains.GetProcess(log, domains.NewHandlerMap(executor))

	sc := cfg.Worker.Subscriber
	pc := cfg.Worker.Processor
	spec := worker.Spec{
		Name: cfg.Worker.Name,
		Subscriber: framework.SubscriberConfig{
			QueueName:    cfg.Lmstfy.Queue,
			Concurrency:  sc.Threads,
			Timeout:      sc.Timeout,
			TTR:          sc.TTR,
			Rate:         sc.Rate,
			ErrorBackoff: sc.ErrorBackoff,
		},
		Processor: framework.ProcessorConfig{
			Concurrency: pc.Threads,
			BufferSize:  pc.BufferSize,
			Timeout:     pc.Timeout,
		},
	}
	return worker.NewManagerInstance([]worker.Spec{spec}, source, proc, log)
}
