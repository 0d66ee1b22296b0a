package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// Order is a checked-out cart paid from the buyer's wallet.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Currency       enums.Currency    `gorm:"column:currency;type:text;not null"`
	SubtotalAmount decimal.Decimal   `gorm:"column:subtotal_amount;type:numeric(14,2);not null"`
	DiscountAmount decimal.Decimal   `gorm:"column:discount_amount;type:numeric(14,2);not null;default:0"`
	TotalAmount    decimal.Decimal   `gorm:"column:total_amount;type:numeric(14,2);not null"`
	CouponID       *uuid.UUID        `gorm:"column:coupon_id;type:uuid"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	Items          []OrderItem       `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem freezes a cart line at checkout time.
type OrderItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName   string          `gorm:"column:product_name;type:text;not null"`
	SelectedValue *string         `gorm:"column:selected_value;type:text"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	Qty           int             `gorm:"column:qty;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
