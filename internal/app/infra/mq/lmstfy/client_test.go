package lmstfy

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWholeSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want uint32
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Nanosecond, 1},
		{200 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{time.Minute, 60},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wholeSeconds(tt.in), tt.in.String())
	}
}

// newTestClient 指向本地 HTTP 服务的客户端，记录最后一次请求的查询参数
func newTestClient(t *testing.T, status int) (*Client, func() map[string]string) {
	t.Helper()
	last := make(chan map[string]string, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		select {
		case last <- q:
		default:
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c := NewClient(host, port, "swap", "token", Options{})
	return c, func() map[string]string {
		select {
		case q := <-last:
			return q
		case <-time.After(time.Second):
			t.Fatal("no request received")
			return nil
		}
	}
}

func TestNewClient_DefaultTries(t *testing.T) {
	c := NewClient("127.0.0.1", 7777, "swap", "token", Options{TTL: 60})
	assert.Equal(t, DefaultOptions.Tries, c.opts.Tries)
	assert.Equal(t, uint32(60), c.opts.TTL)
}

func TestConsume_SubSecondTimeoutStillBlocks(t *testing.T) {
	c, lastQuery := newTestClient(t, http.StatusInternalServerError)

	_, err := c.Consume("swap_order", 200*time.Millisecond, 1500*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lmstfy consume failed")

	q := lastQuery()
	assert.Equal(t, "1", q["timeout"])
	assert.Equal(t, "2", q["ttr"])
}

func TestPublish_Errors(t *testing.T) {
	c, _ := newTestClient(t, http.StatusInternalServerError)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Publish(ctx, "swap_order", []byte(`{}`)), context.Canceled)

	err := c.Publish(context.Background(), "swap_order", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lmstfy publish failed")
}

func TestAck_Error(t *testing.T) {
	c, _ := newTestClient(t, http.StatusInternalServerError)

	err := c.Ack("swap_order", "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lmstfy ack failed")
}
