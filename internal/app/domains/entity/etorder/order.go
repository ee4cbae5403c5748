package etorder

import (
	"fmt"
	"strings"
	"time"

	"swapd/internal/app/pkg/errorx"
)

// Stage 订单阶段
type Stage string

const (
	StagePending   Stage = "pending"
	StageRouting   Stage = "routing"
	StageBuilding  Stage = "building"
	StageSubmitted Stage = "submitted"
	StageConfirmed Stage = "confirmed"
	StageFailed    Stage = "failed"
)

// rank 流水线中的位置，终态共享同一位置
var rank = map[Stage]int{
	StagePending:   0,
	StageRouting:   1,
	StageBuilding:  2,
	StageSubmitted: 3,
	StageConfirmed: 4,
	StageFailed:    4,
}

// Valid 是否为已知阶段
func (s Stage) Valid() bool {
	_, ok := rank[s]
	return ok
}

// IsTerminal confirmed / failed 为终态
func (s Stage) IsTerminal() bool {
	return s == StageConfirmed || s == StageFailed
}

// After 判断 s 是否严格位于 other 之后
func (s Stage) After(other Stage) bool {
	return rank[s] > rank[other]
}

// CanTransition 阶段迁移规则：
// pending -> routing -> building -> submitted -> confirmed，不允许跳跃或回退；
// failed 可以从任意非终态进入；终态之后不允许任何迁移。
func CanTransition(from, to Stage) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	return rank[to] == rank[from]+1
}

// Request 兑换请求（不可变）
type Request struct {
	TokenIn  string
	TokenOut string
	Amount   float64
}

// Validate 校验必填字段
func (r Request) Validate() error {
	var ve *errorx.ValidationError
	add := func(path, info string) {
		if ve == nil {
			ve = errorx.NewValidationError(path, info)
			return
		}
		ve.Add(path, info)
	}

	if strings.TrimSpace(r.TokenIn) == "" {
		add("tokenIn", "tokenIn is required")
	}
	if strings.TrimSpace(r.TokenOut) == "" {
		add("tokenOut", "tokenOut is required")
	}
	if r.Amount <= 0 {
		add("amount", "amount must be greater than 0")
	}

	if ve != nil {
		return ve
	}
	return nil
}

// Pair 交易对
func (r Request) Pair() string {
	return r.TokenIn + "/" + r.TokenOut
}

// Quote 单个 venue 的报价
type Quote struct {
	Venue string  `json:"venue"`
	Price float64 `json:"price"`
}

// Result 成交结果，仅在 confirmed 时存在
type Result struct {
	Venue   string  `json:"venue"`
	Price   float64 `json:"price"`
	Receipt string  `json:"receipt"`
}

// Payload 阶段迁移携带的数据
type Payload struct {
	Quotes []Quote
	Result *Result
	Error  string
}

// Order 订单聚合根
type Order struct {
	ID        string
	Request   Request
	Stage     Stage
	Quotes    []Quote
	Result    *Result
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder 创建订单（工厂方法），初始阶段为 pending
func NewOrder(id string, req Request) (*Order, error) {
	if id == "" {
		return nil, errorx.NewValidationError("orderId", "order id cannot be empty")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Order{
		ID: id,
		Request: Request{
			TokenIn:  strings.TrimSpace(req.TokenIn),
			TokenOut: strings.TrimSpace(req.TokenOut),
			Amount:   req.Amount,
		},
		Stage:     StagePending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition 推进阶段（领域行为）
// 失败时订单保持不变。
func (o *Order) Transition(to Stage, p Payload) error {
	if !CanTransition(o.Stage, to) {
		return fmt.Errorf("%w: order %s %s -> %s", errorx.ErrInvalidTransition, o.ID, o.Stage, to)
	}

	switch to {
	case StageConfirmed:
		if p.Result == nil {
			return fmt.Errorf("%w: order %s confirmed without result", errorx.ErrInvalidTransition, o.ID)
		}
	case StageFailed:
		if p.Error == "" {
			return fmt.Errorf("%w: order %s failed without cause", errorx.ErrInvalidTransition, o.ID)
		}
	}

	o.Stage = to
	if p.Quotes != nil {
		o.Quotes = append([]Quote(nil), p.Quotes...)
	}
	if to == StageConfirmed {
		r := *p.Result
		o.Result = &r
	}
	if to == StageFailed {
		o.Error = p.Error
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone 深拷贝
func (o *Order) Clone() *Order {
	c := *o
	if o.Quotes != nil {
		c.Quotes = append([]Quote(nil), o.Quotes...)
	}
	if o.Result != nil {
		r := *o.Result
		c.Result = &r
	}
	return &c
}

// Event 以当前阶段生成状态事件
func (o *Order) Event(message string) StatusEvent {
	if message == "" {
		message = DefaultMessage(o.Stage)
	}
	ev := StatusEvent{
		OrderID: o.ID,
		Stage:   o.Stage,
		Message: message,
	}
	if o.Stage == StageConfirmed && o.Result != nil {
		r := *o.Result
		ev.Result = &r
	}
	if o.Stage == StageFailed {
		ev.Error = o.Error
	}
	return ev
}
