package coupons

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
)

// Repository manages persistence for discount coupons.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	// IncrementUsage bumps used_count, guarded against exceeding max_uses.
	// Returns the number of rows updated: zero means the coupon ran out.
	IncrementUsage(ctx context.Context, code string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coupon repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) IncrementUsage(ctx context.Context, code string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("code = ? AND is_active = true AND (max_uses IS NULL OR used_count < max_uses)", code).
		Update("used_count", gorm.Expr("used_count + 1"))
	return result.RowsAffected, result.Error
}
