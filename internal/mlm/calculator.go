package mlm

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
)

// UplineResolver yields a buyer's referrer chain, nearest sponsor first,
// bounded to maxLevels entries.
type UplineResolver interface {
	Upline(ctx context.Context, userID uuid.UUID, maxLevels int) ([]models.User, error)
}

// Reward is one level's payout for a purchase. Level is 1-based: the buyer's
// direct sponsor is level 1.
type Reward struct {
	Level  int
	User   models.User
	Amount decimal.Decimal
}

// Calculator maps a purchase amount onto the upline according to the
// configured per-level rates. The number of rates bounds the payout depth.
type Calculator struct {
	upline UplineResolver
	rates  []decimal.Decimal
}

// NewCalculator wires a reward calculator. Each rate must be non-negative.
func NewCalculator(upline UplineResolver, rates []decimal.Decimal) (*Calculator, error) {
	if upline == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "upline resolver required")
	}
	if len(rates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "at least one level rate required")
	}
	for _, rate := range rates {
		if rate.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "level rates must be non-negative")
		}
	}
	return &Calculator{upline: upline, rates: rates}, nil
}

// Levels returns the configured payout depth.
func (c *Calculator) Levels() int {
	return len(c.rates)
}

// CalculateRewards resolves the buyer's upline and computes one reward per
// occupied level. A short upline yields fewer rewards; rewards that round to
// zero are omitted.
func (c *Calculator) CalculateRewards(ctx context.Context, buyerID uuid.UUID, amount decimal.Decimal) ([]Reward, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase amount must be positive")
	}

	chain, err := c.upline.Upline(ctx, buyerID, len(c.rates))
	if err != nil {
		return nil, err
	}

	rewards := make([]Reward, 0, len(chain))
	for i, beneficiary := range chain {
		payout := amount.Mul(c.rates[i]).Round(2)
		if !payout.IsPositive() {
			continue
		}
		rewards = append(rewards, Reward{
			Level:  i + 1,
			User:   beneficiary,
			Amount: payout,
		})
	}
	return rewards, nil
}
