package etorder

// StatusEvent 状态事件（瞬时消息，不持久化）
type StatusEvent struct {
	OrderID string  `json:"orderId"`
	Stage   Stage   `json:"stage"`
	Message string  `json:"message"`
	Result  *Result `json:"result,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Topic 订单状态频道，发布方和订阅方按同一规则推导
func Topic(orderID string) string {
	return "order-updates:" + orderID
}

var defaultMessages = map[Stage]string{
	StagePending:   "Order received and queued",
	StageRouting:   "Comparing prices across venues",
	StageBuilding:  "Building transaction",
	StageSubmitted: "Transaction submitted",
	StageConfirmed: "Transaction confirmed",
	StageFailed:    "Order failed",
}

// DefaultMessage 阶段默认描述
func DefaultMessage(s Stage) string {
	return defaultMessages[s]
}
