package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/domains/services/svlive"
	"swapd/internal/app/pkg/errorx"
	"swapd/internal/app/pkg/logger"
)

var errSinkClosed = errors.New("websocket sink closed")

// streamError 连接建立后的错误负载，随后以 policy violation 关闭
type streamError struct {
	Error string `json:"error"`
}

// Stream 订阅订单状态推送
// GET /api/v1/orders/stream?orderId=...
func (h *OrderHandler) Stream(c *gin.Context) {
	orderID := c.Query("orderId")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已经写回 HTTP 错误
		h.logger.Warnf(c.Request.Context(), "[Stream] upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sink := newWSSink(conn, h.streamCfg.WriteTimeout)
	go sink.readLoop(cancel, h.streamCfg.PingInterval)
	if h.streamCfg.PingInterval > 0 {
		go sink.pingLoop(ctx, h.streamCfg.PingInterval)
	}

	if orderID == "" {
		sink.reject("orderId query parameter is required")
		return
	}

	err = h.registry.Attach(ctx, orderID, sink)
	switch {
	case err == nil:
	case errors.Is(err, errorx.ErrOrderNotFound):
		sink.reject("order not found: " + orderID)
	case errorx.IsValidation(err):
		sink.reject(err.Error())
	default:
		h.logAttachError(logger.WithOrderID(ctx, orderID), err)
		_ = sink.Close(svlive.ReasonUnavailable)
	}
}

// logAttachError 客户端断开导致的写失败是正常结束，不按服务端错误记录
func (h *OrderHandler) logAttachError(ctx context.Context, err error) {
	if errors.Is(err, svlive.ErrSendFailed) {
		h.logger.Warnf(ctx, "[Stream] client went away: %v", err)
		return
	}
	h.logger.Errorf(ctx, "[Stream] attach failed: %v", err)
}

// wsSink svlive.Sink 的 WebSocket 实现
// gorilla 连接只允许一个并发写者，所有写操作串行化
type wsSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func newWSSink(conn *websocket.Conn, writeTimeout time.Duration) *wsSink {
	return &wsSink{conn: conn, writeTimeout: writeTimeout}
}

// Send 写一条状态事件
func (s *wsSink) Send(_ context.Context, ev etorder.StatusEvent) error {
	return s.writeJSON(ev)
}

// Close 发送关闭帧并断开连接，可重复调用
func (s *wsSink) Close(reason string) error {
	return s.closeWith(closeCode(reason), reason)
}

// reject 发送错误负载后以 policy violation 关闭
func (s *wsSink) reject(message string) {
	_ = s.writeJSON(streamError{Error: message})
	_ = s.closeWith(websocket.ClosePolicyViolation, message)
}

func (s *wsSink) writeJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSinkClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

func (s *wsSink) closeWith(code int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
	return s.conn.Close()
}

// readLoop 读取并丢弃客户端消息，读失败即视为客户端断开
func (s *wsSink) readLoop(cancel context.CancelFunc, pingInterval time.Duration) {
	defer cancel()

	if pingInterval > 0 {
		wait := 2 * pingInterval
		_ = s.conn.SetReadDeadline(time.Now().Add(wait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *wsSink) pingLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// closeCode 关闭原因对应的关闭码
func closeCode(reason string) int {
	switch reason {
	case svlive.ReasonShutdown:
		return websocket.CloseGoingAway
	case svlive.ReasonSendFailed, svlive.ReasonUnavailable:
		return websocket.CloseInternalServerErr
	default:
		return websocket.CloseNormalClosure
	}
}
