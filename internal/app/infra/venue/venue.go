package venue

import "context"

// Receipt 成交回执
type Receipt struct {
	TxHash        string
	ExecutedPrice float64
}

// Exchange 报价/执行能力（无状态，所有 Job 共享一个实例）
type Exchange interface {
	// Venues 可用的交易场所，顺序即平价时的优先顺序
	Venues() []string
	// Quote 获取报价
	Quote(ctx context.Context, venue, pair string, amount float64) (float64, error)
	// Execute 按报价执行
	Execute(ctx context.Context, venue, pair string, amount, price float64) (Receipt, error)
}
