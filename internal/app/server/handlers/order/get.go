package order

import (
	"github.com/gin-gonic/gin"

	"swapd/internal/app/domains/apimodel/response"
	"swapd/internal/app/pkg/ginx"
)

// Get 查询订单快照
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	ginx.Success(c, response.FromOrderEntity(order))
}
