package venue

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"slices"
	"time"
)

// ErrExecutionRejected 模拟的链上执行失败
var ErrExecutionRejected = errors.New("execution rejected by venue")

// MockConfig 模拟交易场所配置
type MockConfig struct {
	Names           []string
	BasePrice       float64
	Spread          float64 // 报价围绕 BasePrice 的相对浮动
	QuoteDelay      time.Duration
	ExecuteDelayMin time.Duration
	ExecuteDelayMax time.Duration
	FailRate        float64 // 执行失败概率 [0,1]
	MaxSlippage     float64 // 成交价相对报价的最大滑点
}

// DefaultMockConfig 默认配置
func DefaultMockConfig() MockConfig {
	return MockConfig{
		Names:           []string{"raydium", "meteora"},
		BasePrice:       100,
		Spread:          0.02,
		QuoteDelay:      200 * time.Millisecond,
		ExecuteDelayMin: 2 * time.Second,
		ExecuteDelayMax: 3 * time.Second,
		FailRate:        0,
		MaxSlippage:     0.005,
	}
}

// Mock 模拟 DEX
type Mock struct {
	cfg MockConfig
}

var _ Exchange = (*Mock)(nil)

// NewMock 创建模拟交易场所
func NewMock(cfg MockConfig) *Mock {
	if len(cfg.Names) == 0 {
		cfg.Names = DefaultMockConfig().Names
	}
	if cfg.ExecuteDelayMax < cfg.ExecuteDelayMin {
		cfg.ExecuteDelayMax = cfg.ExecuteDelayMin
	}
	return &Mock{cfg: cfg}
}

// Venues 可用场所
func (m *Mock) Venues() []string {
	return slices.Clone(m.cfg.Names)
}

// Quote 模拟报价：BasePrice * (1 ± Spread)
func (m *Mock) Quote(ctx context.Context, venue, pair string, amount float64) (float64, error) {
	if !slices.Contains(m.cfg.Names, venue) {
		return 0, fmt.Errorf("unknown venue %q", venue)
	}
	if err := sleep(ctx, m.cfg.QuoteDelay); err != nil {
		return 0, err
	}
	return m.cfg.BasePrice * (1 + (mrand.Float64()*2-1)*m.cfg.Spread), nil
}

// Execute 模拟执行：随机耗时，按 FailRate 失败，成交价带滑点
func (m *Mock) Execute(ctx context.Context, venue, pair string, amount, price float64) (Receipt, error) {
	delay := m.cfg.ExecuteDelayMin
	if span := m.cfg.ExecuteDelayMax - m.cfg.ExecuteDelayMin; span > 0 {
		delay += time.Duration(mrand.Int64N(int64(span)))
	}
	if err := sleep(ctx, delay); err != nil {
		return Receipt{}, err
	}

	if m.cfg.FailRate > 0 && mrand.Float64() < m.cfg.FailRate {
		return Receipt{}, fmt.Errorf("%w: %s %s slippage tolerance exceeded", ErrExecutionRejected, venue, pair)
	}

	txHash, err := newTxHash()
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		TxHash:        txHash,
		ExecutedPrice: price * (1 - mrand.Float64()*m.cfg.MaxSlippage),
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newTxHash 64 位十六进制交易哈希
func newTxHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
