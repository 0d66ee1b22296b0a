package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// WalletBalance holds one user's balance in one currency. The (user, currency)
// pair is unique; rows are created lazily on first credit and never deleted.
// CardNumber is derived once at creation so transfer lookups are indexed
// instead of rehashing every account.
type WalletBalance struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_wallet_balances_user_currency"`
	Currency   enums.Currency  `gorm:"column:currency;type:text;not null;uniqueIndex:idx_wallet_balances_user_currency"`
	Balance    decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	CardNumber string          `gorm:"column:card_number;type:text;not null;index"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
