package model

import "encoding/json"

// ActionSwapOrder swap 订单执行任务的路由键
const ActionSwapOrder = "swap_order"

// Job 标准 Job 结构（队列消息外层）
// 用于 apiserver → worker 的消息传递
type Job struct {
	Payload *JobPayload `json:"payload"`
}

// JobPayload Job 负载
type JobPayload struct {
	Data *JobPayloadData `json:"data"`
}

// JobPayloadData Job 数据层
type JobPayloadData struct {
	// 元信息
	RequestID  string `json:"request_id"`  // 请求 ID（全链路追踪）
	ActionType string `json:"action_type"` // 动作类型（路由键）
	ID         string `json:"id"`          // 订单 ID

	// 业务数据，按 ActionType 延迟解析
	Data json.RawMessage `json:"data"`
}

// Meta 元数据
type Meta struct {
	RequestID  string
	ActionType string
	ID         string
}

// SwapJob 队列工作项：{orderId, tokenIn, tokenOut, amount}
// 携带完整请求，worker 写状态时无需回查请求参数
type SwapJob struct {
	OrderID  string  `json:"orderId"`
	TokenIn  string  `json:"tokenIn"`
	TokenOut string  `json:"tokenOut"`
	Amount   float64 `json:"amount"`
}

// NewSwapJobMessage 构造标准化消息
func NewSwapJobMessage(requestID string, item SwapJob) (*Job, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	return &Job{
		Payload: &JobPayload{
			Data: &JobPayloadData{
				RequestID:  requestID,
				ActionType: ActionSwapOrder,
				ID:         item.OrderID,
				Data:       data,
			},
		},
	}, nil
}
