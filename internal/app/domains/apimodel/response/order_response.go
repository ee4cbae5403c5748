package response

import (
	"time"

	"swapd/internal/app/domains/entity/etorder"
)

// CreateOrderResponse 创建订单响应
type CreateOrderResponse struct {
	OrderID string `json:"orderId" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// OrderResponse 订单快照（DTO）
type OrderResponse struct {
	OrderID   string          `json:"orderId"`
	TokenIn   string          `json:"tokenIn"`
	TokenOut  string          `json:"tokenOut"`
	Amount    float64         `json:"amount"`
	Stage     string          `json:"stage"`
	Result    *Result         `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Quotes    []etorder.Quote `json:"quotes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Result 成交结果（DTO）
type Result struct {
	Receipt string  `json:"receipt"`
	Price   float64 `json:"price"`
	Venue   string  `json:"venue"`
}

// FromOrderEntity 领域对象转换为 DTO
func FromOrderEntity(order *etorder.Order) *OrderResponse {
	resp := &OrderResponse{
		OrderID:   order.ID,
		TokenIn:   order.Request.TokenIn,
		TokenOut:  order.Request.TokenOut,
		Amount:    order.Request.Amount,
		Stage:     string(order.Stage),
		Error:     order.Error,
		Quotes:    order.Quotes,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	if order.Result != nil {
		resp.Result = &Result{
			Receipt: order.Result.Receipt,
			Price:   order.Result.Price,
			Venue:   order.Result.Venue,
		}
	}
	return resp
}
