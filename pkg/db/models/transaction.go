package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// Transaction records an immutable ledger entry. Amount is signed: debits are
// negative, credits positive. Every balance mutation the wallet engine makes
// is paired with exactly one row here.
type Transaction struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Currency  enums.Currency        `gorm:"column:currency;type:text;not null"`
	Amount    decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null"`
	Type      enums.TransactionType `gorm:"column:type;type:transaction_type_enum;not null"`
	Metadata  json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}
