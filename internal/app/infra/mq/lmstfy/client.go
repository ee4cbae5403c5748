package lmstfy

import (
	"context"
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"

	"swapd/internal/framework"
)

// Options 发布参数
type Options struct {
	TTL   uint32 // 消息存活时间（秒），0 表示不过期
	Tries uint16 // 最大投递次数
	Delay uint32 // 延迟投递（秒）
}

// DefaultOptions 默认发布参数
var DefaultOptions = Options{TTL: 3600, Tries: 3, Delay: 0}

// Client Lmstfy 客户端封装
// 同时作为发布端（API 进程）和 MessageSource（worker 进程）
type Client struct {
	cli       *client.LmstfyClient
	namespace string
	opts      Options
}

var _ framework.MessageSource = (*Client)(nil)

// NewClient 创建 Lmstfy 客户端
func NewClient(host string, port int, namespace, token string, opts Options) *Client {
	if opts.Tries == 0 {
		opts.Tries = DefaultOptions.Tries
	}
	return &Client{
		cli:       client.NewLmstfyClient(host, port, namespace, token),
		namespace: namespace,
		opts:      opts,
	}
}

// Publish 发布消息到队列
func (c *Client) Publish(ctx context.Context, queue string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.cli.Publish(queue, data, c.opts.TTL, c.opts.Tries, c.opts.Delay); err != nil {
		return fmt.Errorf("lmstfy publish failed: %w", err)
	}
	return nil
}

// Consume 消费消息（实现 MessageSource 接口）
func (c *Client) Consume(queue string, timeout time.Duration, ttr time.Duration) (*framework.Message, error) {
	// timeout 为 0 时服务端立即返回，拉取循环会空转
	timeoutSec := wholeSeconds(timeout)
	if timeoutSec == 0 {
		timeoutSec = 1
	}

	job, err := c.cli.Consume(queue, wholeSeconds(ttr), timeoutSec)
	if err != nil {
		return nil, fmt.Errorf("lmstfy consume failed: %w", err)
	}

	// 超时未拉到消息
	if job == nil {
		return nil, nil
	}

	return &framework.Message{
		ID:    job.ID,
		Queue: job.Queue,
		Data:  job.Data,
		Extra: map[string]interface{}{"namespace": c.namespace},
	}, nil
}

// Ack 确认消息（实现 MessageSource 接口）
func (c *Client) Ack(queue string, jobID string) error {
	if err := c.cli.Ack(queue, jobID); err != nil {
		return fmt.Errorf("lmstfy ack failed: %w", err)
	}
	return nil
}

// wholeSeconds 向上取整到秒，服务端只接受整秒
func wholeSeconds(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32((d + time.Second - 1) / time.Second)
}
