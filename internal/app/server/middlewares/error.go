package middlewares

import (
	"github.com/gin-gonic/gin"

	"swapd/internal/app/pkg/ginx"
)

// ErrorHandler 统一错误处理中间件
// Handler 通过 c.Error 上报错误，由这里映射为 HTTP 响应
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		ginx.HandleError(c, c.Errors.Last().Err)
	}
}
