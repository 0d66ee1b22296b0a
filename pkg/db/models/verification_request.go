package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// VerificationRequest tracks an identity verification submission.
type VerificationRequest struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	DocumentRef string                   `gorm:"column:document_ref;type:text;not null"`
	Status      enums.VerificationStatus `gorm:"column:status;type:verification_status_enum;not null;default:'pending'"`
	Comment     *string                  `gorm:"column:comment;type:text"`
	ReviewedBy  *uuid.UUID               `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt  *time.Time               `gorm:"column:reviewed_at;type:timestamptz"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
