package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// Product is a catalog entry priced in a wallet currency.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string           `gorm:"column:name;type:text;not null"`
	Description string           `gorm:"column:description;type:text"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(14,2);not null"`
	Currency    enums.Currency   `gorm:"column:currency;type:text;not null"`
	Category    string           `gorm:"column:category;type:text;index"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is a purchasable variation of a product, described by an
// attribute name and its allowed values (size, color).
type ProductVariant struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Attribute  string          `gorm:"column:attribute;type:text;not null"`
	Values     pq.StringArray  `gorm:"column:option_values;type:text[];not null;default:ARRAY[]::text[]"`
	PriceDelta decimal.Decimal `gorm:"column:price_delta;type:numeric(14,2);not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
