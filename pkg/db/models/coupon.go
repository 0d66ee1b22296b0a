package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// Coupon is a checkout discount code.
type Coupon struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code         string             `gorm:"column:code;type:text;not null;uniqueIndex"`
	DiscountType enums.DiscountType `gorm:"column:discount_type;type:discount_type_enum;not null"`
	Value        decimal.Decimal    `gorm:"column:value;type:numeric(14,2);not null"`
	ExpiresAt    *time.Time         `gorm:"column:expires_at;type:timestamptz"`
	MaxUses      *int               `gorm:"column:max_uses"`
	UsedCount    int                `gorm:"column:used_count;not null;default:0"`
	IsActive     bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
