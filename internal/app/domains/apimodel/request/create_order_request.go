package request

import "swapd/internal/app/domains/entity/etorder"

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	TokenIn  string   `json:"tokenIn" binding:"required" example:"SOL"`
	TokenOut string   `json:"tokenOut" binding:"required" example:"USDC"`
	Amount   *float64 `json:"amount" binding:"required,gt=0" example:"10"`
}

// ToEntity 转换为领域请求
func (r *CreateOrderRequest) ToEntity() etorder.Request {
	req := etorder.Request{TokenIn: r.TokenIn, TokenOut: r.TokenOut}
	if r.Amount != nil {
		req.Amount = *r.Amount
	}
	return req
}
