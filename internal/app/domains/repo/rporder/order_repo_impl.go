package rporder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/pkg/errorx"
	"swapd/internal/common/entity"
)

// OrderRepositoryImpl 订单仓储实现（gorm，MySQL/Postgres/SQLite）
type OrderRepositoryImpl struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &OrderRepositoryImpl{db: db}
}

// Upsert 在事务内加行锁读取当前记录，校验阶段迁移后写入完整记录
// 同一 order_id 的并发写入由行锁串行化，不同 order_id 互不影响
func (r *OrderRepositoryImpl) Upsert(ctx context.Context, order *etorder.Order) error {
	po, err := r.toGormModel(order)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entity.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", order.ID).
			Take(&current).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			if order.Stage != etorder.StagePending {
				return fmt.Errorf("%w: order %s has no record, cannot write %s",
					errorx.ErrInvalidTransition, order.ID, order.Stage)
			}
			return tx.Create(po).Error
		}
		if err != nil {
			return err
		}

		from := etorder.Stage(current.Stage)
		if !etorder.CanTransition(from, order.Stage) {
			return fmt.Errorf("%w: order %s stored %s, write %s",
				errorx.ErrInvalidTransition, order.ID, from, order.Stage)
		}

		po.CreatedAt = current.CreatedAt
		return tx.Save(po).Error
	})
}

// GetByID 根据ID查询订单，将 GORM 模型转换为领域对象
func (r *OrderRepositoryImpl) GetByID(ctx context.Context, orderID string) (*etorder.Order, error) {
	var po entity.Order
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", errorx.ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	return r.toDomainModel(&po)
}

// ListStalePending 查询长时间停留在 pending 的订单
func (r *OrderRepositoryImpl) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*etorder.Order, error) {
	var pos []entity.Order
	err := r.db.WithContext(ctx).
		Where("stage = ? AND updated_at < ?", string(etorder.StagePending), before.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	orders := make([]*etorder.Order, 0, len(pos))
	for i := range pos {
		order, err := r.toDomainModel(&pos[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// TouchPending 条件更新，阶段已推进的记录不受影响
func (r *OrderRepositoryImpl) TouchPending(ctx context.Context, orderID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Order{}).
		Where("order_id = ? AND stage = ?", orderID, string(etorder.StagePending)).
		UpdateColumn("updated_at", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// toGormModel 领域对象转换为 GORM 模型
func (r *OrderRepositoryImpl) toGormModel(order *etorder.Order) (*entity.Order, error) {
	po := &entity.Order{
		OrderID:   order.ID,
		TokenIn:   order.Request.TokenIn,
		TokenOut:  order.Request.TokenOut,
		Amount:    order.Request.Amount,
		Stage:     string(order.Stage),
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}

	if len(order.Quotes) > 0 {
		quotesJSON, err := json.Marshal(order.Quotes)
		if err != nil {
			return nil, err
		}
		po.Quotes = quotesJSON
	}

	if order.Result != nil {
		venue, price, receipt := order.Result.Venue, order.Result.Price, order.Result.Receipt
		po.Venue = &venue
		po.Price = &price
		po.Receipt = &receipt
	}

	if order.Error != "" {
		msg := order.Error
		po.ErrorMessage = &msg
	}

	return po, nil
}

// toDomainModel GORM 模型转换为领域对象
func (r *OrderRepositoryImpl) toDomainModel(po *entity.Order) (*etorder.Order, error) {
	order := &etorder.Order{
		ID: po.OrderID,
		Request: etorder.Request{
			TokenIn:  po.TokenIn,
			TokenOut: po.TokenOut,
			Amount:   po.Amount,
		},
		Stage:     etorder.Stage(po.Stage),
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	}

	if len(po.Quotes) > 0 {
		if err := json.Unmarshal(po.Quotes, &order.Quotes); err != nil {
			return nil, err
		}
	}

	if po.Receipt != nil {
		result := &etorder.Result{Receipt: *po.Receipt}
		if po.Venue != nil {
			result.Venue = *po.Venue
		}
		if po.Price != nil {
			result.Price = *po.Price
		}
		order.Result = result
	}

	if po.ErrorMessage != nil {
		order.Error = *po.ErrorMessage
	}

	return order, nil
}
