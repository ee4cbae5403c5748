package order

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"swapd/internal/app/domains/services/svlive"
	"swapd/internal/app/domains/services/svorder"
	"swapd/internal/app/pkg/logger"
)

// StreamConfig 状态推送连接配置
type StreamConfig struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// OrderHandler 订单 HTTP / WebSocket 处理器
type OrderHandler struct {
	orderService *svorder.OrderService
	registry     *svlive.Registry
	upgrader     websocket.Upgrader
	streamCfg    StreamConfig
	logger       logger.Logger
}

// NewOrderHandler 创建订单处理器实例
func NewOrderHandler(
	orderService *svorder.OrderService,
	registry *svlive.Registry,
	streamCfg StreamConfig,
	log logger.Logger,
) *OrderHandler {
	if streamCfg.WriteTimeout <= 0 {
		streamCfg.WriteTimeout = 5 * time.Second
	}
	return &OrderHandler{
		orderService: orderService,
		registry:     registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 跨域由 CORS 中间件统一控制
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		streamCfg: streamCfg,
		logger:    log,
	}
}
