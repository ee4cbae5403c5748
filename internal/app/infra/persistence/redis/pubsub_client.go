package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/infra/bus"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
)

// PubSubClient Redis Pub/Sub 实现的 Bus
// 频道为 order-updates:{orderId}，API 与 worker 可分属不同进程
type PubSubClient struct {
	rdb     *redis.Client
	logger  logger.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	subs map[string]*redisSub
}

type redisSub struct {
	sub *bus.Subscription
	ps  *redis.PubSub
}

var _ bus.Bus = (*PubSubClient)(nil)

// NewClient 创建 Redis 客户端，支持密码认证
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// NewPubSubClient 创建 Pub/Sub Bus
func NewPubSubClient(rdb *redis.Client, log logger.Logger, m *metrics.Metrics) *PubSubClient {
	return &PubSubClient{
		rdb:     rdb,
		logger:  log,
		metrics: m,
		subs:    make(map[string]*redisSub),
	}
}

// Publish 向订单频道发布状态事件
func (c *PubSubClient) Publish(ctx context.Context, orderID string, ev etorder.StatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	receivers, err := c.rdb.Publish(ctx, etorder.Topic(orderID), data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", etorder.Topic(orderID), err)
	}
	if receivers == 0 {
		c.logger.Debugf(ctx, "[Bus] no subscriber for %s, stage=%s dropped", orderID, ev.Stage)
	}
	return nil
}

// Subscribe 订阅订单频道，等待服务端确认后返回
func (c *PubSubClient) Subscribe(ctx context.Context, orderID string) (*bus.Subscription, error) {
	ps := c.rdb.Subscribe(ctx, etorder.Topic(orderID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe %s: %w", etorder.Topic(orderID), err)
	}

	entry := &redisSub{sub: bus.NewSubscription(orderID, bus.DefaultBuffer), ps: ps}

	c.mu.Lock()
	old := c.subs[orderID]
	c.subs[orderID] = entry
	c.mu.Unlock()

	if old != nil {
		c.release(old)
		c.logger.Infof(ctx, "[Bus] subscription for %s replaced", orderID)
	}

	go c.relay(entry)
	return entry.sub, nil
}

// Unsubscribe 取消订阅
func (c *PubSubClient) Unsubscribe(sub *bus.Subscription) {
	if sub == nil {
		return
	}

	c.mu.Lock()
	entry := c.subs[sub.OrderID]
	if entry != nil && entry.sub == sub {
		delete(c.subs, sub.OrderID)
	} else {
		entry = nil
	}
	c.mu.Unlock()

	if entry != nil {
		c.release(entry)
		return
	}
	sub.Close()
}

// Close 关闭全部订阅
func (c *PubSubClient) Close() error {
	c.mu.Lock()
	entries := c.subs
	c.subs = make(map[string]*redisSub)
	c.mu.Unlock()

	for _, e := range entries {
		c.release(e)
	}
	return nil
}

// relay 将 Redis 消息转为状态事件，Channel 在 ps.Close 后关闭
func (c *PubSubClient) relay(entry *redisSub) {
	ctx := logger.WithOrderID(context.Background(), entry.sub.OrderID)
	for msg := range entry.ps.Channel() {
		var ev etorder.StatusEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			c.logger.Errorf(ctx, "[Bus] malformed status event on %s: %v", msg.Channel, err)
			continue
		}
		switch entry.sub.Deliver(ev) {
		case bus.Overflow:
			c.metrics.LiveDropped.Inc()
			c.logger.Warnf(ctx, "[Bus] subscriber buffer full, stage=%s dropped", ev.Stage)
		case bus.Ended:
			c.logger.Debugf(ctx, "[Bus] subscription already ended, stage=%s ignored", ev.Stage)
		}
	}
}

func (c *PubSubClient) release(entry *redisSub) {
	entry.sub.Close()
	if err := entry.ps.Close(); err != nil {
		c.logger.Warnf(context.Background(), "[Bus] close pubsub for %s: %v", entry.sub.OrderID, err)
	}
}
