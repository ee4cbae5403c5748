package order

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"swapd/internal/app/domains/services/svlive"
	"swapd/internal/app/pkg/logger"
)

func TestLogAttachError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level zapcore.Level
	}{
		{"client disconnected", fmt.Errorf("%w: routing: %w", svlive.ErrSendFailed, errors.New("broken pipe")), zapcore.WarnLevel},
		{"bus unavailable", errors.New("subscribe: redis: connection refused"), zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := &OrderHandler{logger: logger.NewFromZap(zap.New(core))}

			h.logAttachError(context.Background(), tt.err)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
		})
	}
}

func TestCloseCode(t *testing.T) {
	assert.Equal(t, websocket.CloseNormalClosure, closeCode(svlive.ReasonTerminal))
	assert.Equal(t, websocket.CloseNormalClosure, closeCode(svlive.ReasonSuperseded))
	assert.Equal(t, websocket.CloseGoingAway, closeCode(svlive.ReasonShutdown))
	assert.Equal(t, websocket.CloseInternalServerErr, closeCode(svlive.ReasonSendFailed))
	assert.Equal(t, websocket.CloseInternalServerErr, closeCode(svlive.ReasonUnavailable))
}
