package mdswap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/pkg/errorx"
	"swapd/internal/common/model"
)

// JobPublisher 队列发布端（lmstfy.Client / memqueue.Queue）
type JobPublisher interface {
	Publish(ctx context.Context, queue string, data []byte) error
}

// SwapModule swap 任务模块
// 职责：构造标准化消息格式并投递到工作队列
type SwapModule struct {
	publisher JobPublisher
	queueName string
}

// NewSwapModule 创建 swap 任务模块
func NewSwapModule(publisher JobPublisher, queueName string) *SwapModule {
	return &SwapModule{
		publisher: publisher,
		queueName: queueName,
	}
}

// PublishSwapJob 发布订单执行任务到队列
// 工作项携带完整请求：{orderId, tokenIn, tokenOut, amount}
func (m *SwapModule) PublishSwapJob(ctx context.Context, order *etorder.Order) error {
	message, err := model.NewSwapJobMessage(uuid.New().String(), model.SwapJob{
		OrderID:  order.ID,
		TokenIn:  order.Request.TokenIn,
		TokenOut: order.Request.TokenOut,
		Amount:   order.Request.Amount,
	})
	if err != nil {
		return fmt.Errorf("build swap job failed: %w", err)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal swap job failed: %w", err)
	}

	if err := m.publisher.Publish(ctx, m.queueName, data); err != nil {
		return fmt.Errorf("%w: %v", errorx.ErrQueueUnavailable, err)
	}
	return nil
}

// QueueName 任务队列名
func (m *SwapModule) QueueName() string {
	return m.queueName
}
