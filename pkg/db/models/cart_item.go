package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one product line in a user's cart. SelectedValue captures the
// chosen variant value when the product has variants.
type CartItem struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID     uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID     *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	SelectedValue *string    `gorm:"column:selected_value;type:text"`
	Qty           int        `gorm:"column:qty;not null;default:1"`
	Product       *Product   `gorm:"foreignKey:ProductID"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
