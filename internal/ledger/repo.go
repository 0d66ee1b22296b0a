package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// Repository manages persistence for per-user per-currency balance rows.
// It performs no funds-sufficiency validation; that is the wallet engine's
// responsibility.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Get returns the balance row for (userID, currency), or nil when the
	// user holds no balance in that currency yet.
	Get(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.WalletBalance, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WalletBalance, error)
	// Adjust applies the signed amount atomically: a missing row is created
	// with balance = amount, an existing row is updated with a single
	// balance = balance + amount expression. Returns the post-mutation row.
	Adjust(ctx context.Context, userID uuid.UUID, currency enums.Currency, amount decimal.Decimal) (*models.WalletBalance, error)
	// FindByCardNumber resolves a stored card number to its balance row, or
	// nil when no account carries that card.
	FindByCardNumber(ctx context.Context, cardNumber string) (*models.WalletBalance, error)
	// EnsureRow creates a zero-balance row for (userID, currency) if none
	// exists. Used to seed accounts at registration.
	EnsureRow(ctx context.Context, userID uuid.UUID, currency enums.Currency) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.WalletBalance, error) {
	var row models.WalletBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WalletBalance, error) {
	var rows []models.WalletBalance
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("currency ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Adjust(ctx context.Context, userID uuid.UUID, currency enums.Currency, amount decimal.Decimal) (*models.WalletBalance, error) {
	row := &models.WalletBalance{
		UserID:     userID,
		Currency:   currency,
		Balance:    amount.Round(2),
		CardNumber: DeriveCardNumber(userID, currency),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "currency"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("round(wallet_balances.balance + excluded.balance, 2)"),
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, currency)
}

func (r *repository) FindByCardNumber(ctx context.Context, cardNumber string) (*models.WalletBalance, error) {
	var row models.WalletBalance
	err := r.db.WithContext(ctx).
		Where("card_number = ?", cardNumber).
		Order("created_at ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) EnsureRow(ctx context.Context, userID uuid.UUID, currency enums.Currency) error {
	row := &models.WalletBalance{
		UserID:     userID,
		Currency:   currency,
		Balance:    decimal.Zero,
		CardNumber: DeriveCardNumber(userID, currency),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "currency"}},
		DoNothing: true,
	}).Create(row).Error
}
