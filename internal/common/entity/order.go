package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Order 订单快照表（每个订单一行，始终保存最新状态）
type Order struct {
	// 基础字段
	OrderID string `gorm:"column:order_id;primaryKey;type:varchar(64)"`

	// 请求参数，每次写入都完整携带
	TokenIn  string  `gorm:"column:token_in;type:varchar(32);not null"`
	TokenOut string  `gorm:"column:token_out;type:varchar(32);not null"`
	Amount   float64 `gorm:"column:amount;not null"`

	// 阶段与结果
	Stage        string         `gorm:"column:stage;type:varchar(16);not null;default:'pending';index:idx_stage_updated"`
	Venue        *string        `gorm:"column:venue;type:varchar(32)"`
	Price        *float64       `gorm:"column:price"`
	Receipt      *string        `gorm:"column:receipt;type:varchar(128)"`
	ErrorMessage *string        `gorm:"column:error_message;type:text"`
	Quotes       datatypes.JSON `gorm:"column:quotes;type:json"`

	// 时间戳
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;index:idx_stage_updated"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
