package transactions

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
)

// LevelIncome aggregates mlm_reward transactions for one upline level.
type LevelIncome struct {
	Level       int             `json:"level"`
	RewardCount int64           `json:"rewardCount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Repository manages persistence for the append-only transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	// IncomeByLevel returns a dense report for levels 1..maxLevel: levels
	// without rewards appear with zero count and amount.
	IncomeByLevel(ctx context.Context, userID uuid.UUID, maxLevel int) ([]LevelIncome, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	var rows []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) IncomeByLevel(ctx context.Context, userID uuid.UUID, maxLevel int) ([]LevelIncome, error) {
	var rows []LevelIncome
	err := r.db.WithContext(ctx).Raw(`
		SELECT l.level,
		       COALESCE(t.reward_count, 0) AS reward_count,
		       COALESCE(t.total_amount, 0) AS total_amount
		FROM generate_series(1, ?) AS l(level)
		LEFT JOIN (
			SELECT (metadata->>'level')::int AS level,
			       COUNT(*)                  AS reward_count,
			       SUM(amount)               AS total_amount
			FROM transactions
			WHERE user_id = ? AND type = 'mlm_reward'
			GROUP BY 1
		) t ON t.level = l.level
		ORDER BY l.level`,
		maxLevel, userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
