package order

import (
	"github.com/gin-gonic/gin"

	"swapd/internal/app/domains/apimodel/request"
	"swapd/internal/app/domains/apimodel/response"
	"swapd/internal/app/pkg/ginx"
)

// Create 提交 swap 订单
// POST /api/v1/orders  {tokenIn, tokenOut, amount} -> 201 {orderId}
func (h *OrderHandler) Create(c *gin.Context) {
	var req request.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	orderID, err := h.orderService.Submit(c.Request.Context(), req.ToEntity())
	if err != nil {
		_ = c.Error(err)
		return
	}

	ginx.Created(c, response.CreateOrderResponse{OrderID: orderID})
}
