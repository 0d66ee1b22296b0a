package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

// Service validates and applies discount coupons.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	// Quote validates the coupon against the subtotal and returns the
	// discount it would grant, without consuming a use.
	Quote(ctx context.Context, code string, subtotal decimal.Decimal) (*Quote, error)
	// Redeem consumes one use inside the caller's transaction. It re-checks
	// the usage cap atomically so concurrent checkouts cannot overspend it.
	Redeem(ctx context.Context, tx *gorm.DB, code string) (*models.Coupon, error)
}

type CreateInput struct {
	Code         string
	DiscountType enums.DiscountType
	Value        decimal.Decimal
	ExpiresAt    *time.Time
	MaxUses      *int
}

// Quote is the discount a coupon grants on a given subtotal.
type Quote struct {
	Coupon   *models.Coupon
	Discount decimal.Decimal
}

type service struct {
	repo     Repository
	timeFunc func() time.Time
}

// NewService wires a coupon service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupons repository required")
	}
	return &service{repo: repo, timeFunc: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	code := normalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	if !input.DiscountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type")
	}
	if !input.Value.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if input.DiscountType == enums.DiscountTypePercent && input.Value.GreaterThan(oneHundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percent discount cannot exceed 100")
	}
	if input.MaxUses != nil && *input.MaxUses <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max uses must be positive")
	}

	coupon := &models.Coupon{
		Code:         code,
		DiscountType: input.DiscountType,
		Value:        input.Value.Round(2),
		ExpiresAt:    input.ExpiresAt,
		MaxUses:      input.MaxUses,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return coupon, nil
}

func (s *service) Quote(ctx context.Context, code string, subtotal decimal.Decimal) (*Quote, error) {
	coupon, err := s.lookupValid(ctx, nil, code)
	if err != nil {
		return nil, err
	}
	return &Quote{Coupon: coupon, Discount: s.discountFor(coupon, subtotal)}, nil
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code string) (*models.Coupon, error) {
	repo := s.repo.WithTx(tx)
	coupon, err := s.lookupValid(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	updated, err := repo.IncrementUsage(ctx, coupon.Code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem coupon")
	}
	if updated == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon has no uses left")
	}
	return coupon, nil
}

func (s *service) lookupValid(ctx context.Context, tx *gorm.DB, code string) (*models.Coupon, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	coupon, err := s.repo.WithTx(tx).FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find coupon")
	}
	if coupon == nil || !coupon.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(s.timeFunc()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired")
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon has no uses left")
	}
	return coupon, nil
}

// discountFor caps the discount at the subtotal so totals never go negative.
func (s *service) discountFor(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercent:
		discount = subtotal.Mul(coupon.Value).Div(oneHundred).Round(2)
	case enums.DiscountTypeFixed:
		discount = coupon.Value
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
