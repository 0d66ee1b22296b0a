package verification

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// Repository manages persistence for verification requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.VerificationRequest) error
	Update(ctx context.Context, request *models.VerificationRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error)
	FindPendingByUser(ctx context.Context, userID uuid.UUID) (*models.VerificationRequest, error)
	ListByStatus(ctx context.Context, status enums.VerificationStatus) ([]models.VerificationRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.VerificationRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a verification repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.VerificationRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) Update(ctx context.Context, request *models.VerificationRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	var request models.VerificationRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindPendingByUser(ctx context.Context, userID uuid.UUID) (*models.VerificationRequest, error) {
	var request models.VerificationRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.VerificationStatusPending).
		First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.VerificationStatus) ([]models.VerificationRequest, error) {
	var requests []models.VerificationRequest
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.VerificationRequest, error) {
	var requests []models.VerificationRequest
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
