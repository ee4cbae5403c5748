package rporder

import (
	"context"
	"time"

	"swapd/internal/app/domains/entity/etorder"
)

// OrderRepository 订单快照仓储接口
// 实现在同包 order_repo_impl.go（gorm）
type OrderRepository interface {
	// Upsert 按 order_id 写入完整记录（插入或更新）
	// 记录不存在时只允许写入 pending；存在时只允许合法的下一阶段，否则返回 errorx.ErrInvalidTransition
	Upsert(ctx context.Context, order *etorder.Order) error

	// GetByID 根据ID查询订单，不存在时返回 errorx.ErrOrderNotFound
	GetByID(ctx context.Context, orderID string) (*etorder.Order, error)

	// ListStalePending 查询 updated_at 早于 before 的 pending 订单（对账补投递）
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*etorder.Order, error)

	// TouchPending 记录仍为 pending 时把 updated_at 推到 at，返回是否更新
	// 对账补投递后调用，避免同一订单在下个周期被重复投递
	TouchPending(ctx context.Context, orderID string, at time.Time) (bool, error)
}
