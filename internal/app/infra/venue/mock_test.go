package venue

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() MockConfig {
	cfg := DefaultMockConfig()
	cfg.QuoteDelay = 0
	cfg.ExecuteDelayMin = time.Millisecond
	cfg.ExecuteDelayMax = 2 * time.Millisecond
	return cfg
}

func TestMock_QuoteWithinSpread(t *testing.T) {
	m := NewMock(fastConfig())
	assert.Equal(t, []string{"raydium", "meteora"}, m.Venues())

	for i := 0; i < 50; i++ {
		price, err := m.Quote(context.Background(), "raydium", "SOL/USDC", 10)
		require.NoError(t, err)
		assert.InDelta(t, 100, price, 2.0001)
	}

	_, err := m.Quote(context.Background(), "orca", "SOL/USDC", 10)
	assert.Error(t, err)
}

func TestMock_ExecuteReceipt(t *testing.T) {
	m := NewMock(fastConfig())

	r, err := m.Execute(context.Background(), "raydium", "SOL/USDC", 10, 99)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), r.TxHash)
	assert.LessOrEqual(t, r.ExecutedPrice, 99.0)
	assert.GreaterOrEqual(t, r.ExecutedPrice, 99*(1-0.005))
}

func TestMock_ExecuteFailRate(t *testing.T) {
	cfg := fastConfig()
	cfg.FailRate = 1
	m := NewMock(cfg)

	_, err := m.Execute(context.Background(), "meteora", "SOL/USDC", 10, 99)
	assert.ErrorIs(t, err, ErrExecutionRejected)
}

func TestMock_ExecuteHonoursContext(t *testing.T) {
	cfg := fastConfig()
	cfg.ExecuteDelayMin = time.Minute
	cfg.ExecuteDelayMax = time.Minute
	m := NewMock(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Execute(ctx, "raydium", "SOL/USDC", 10, 99)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
