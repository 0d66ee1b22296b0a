package transactions

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
)

// Service defines operations that record and report ledger transactions.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	IncomeByLevel(ctx context.Context, userID uuid.UUID) ([]LevelIncome, error)
}

// RecordInput captures the immutable data a transaction row requires. Amount
// is signed: debits negative, credits positive.
type RecordInput struct {
	UserID   uuid.UUID
	Currency enums.Currency
	Amount   decimal.Decimal
	Type     enums.TransactionType
	Metadata any
}

// MLMRewardMetadata tags a reward credit with its level and source buyer.
type MLMRewardMetadata struct {
	Level        int       `json:"level"`
	SourceUserID uuid.UUID `json:"sourceUserId"`
}

// ConvertMetadata carries the counter-currency and rate of a conversion leg.
type ConvertMetadata struct {
	CounterCurrency enums.Currency  `json:"counterCurrency"`
	Rate            decimal.Decimal `json:"rate"`
}

// TransferMetadata carries the counterparty of a card transfer leg.
type TransferMetadata struct {
	CounterpartyID uuid.UUID `json:"counterpartyId"`
	CardNumber     string    `json:"cardNumber"`
	Description    string    `json:"description,omitempty"`
}

// PurchaseMetadata carries the optional purchase description.
type PurchaseMetadata struct {
	Description string `json:"description,omitempty"`
}

type service struct {
	repo      Repository
	maxLevels int
}

// NewService wires a transaction service with the provided repository. The
// maxLevels bound sizes the income-by-level report.
func NewService(repo Repository, maxLevels int) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transactions repository required")
	}
	if maxLevels <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "positive level bound required")
	}
	return &service{repo: repo, maxLevels: maxLevels}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Transaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}
	if input.Amount.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}

	var metadata json.RawMessage
	if input.Metadata != nil {
		encoded, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transaction metadata")
		}
		metadata = encoded
	}

	row := &models.Transaction{
		UserID:   input.UserID,
		Currency: input.Currency,
		Amount:   input.Amount,
		Type:     input.Type,
		Metadata: metadata,
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transaction")
	}
	return row, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return rows, nil
}

func (s *service) IncomeByLevel(ctx context.Context, userID uuid.UUID) ([]LevelIncome, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.IncomeByLevel(ctx, userID, s.maxLevels)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate mlm income")
	}
	return rows, nil
}
