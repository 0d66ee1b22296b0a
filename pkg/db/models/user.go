package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. ReferrerID links each user
// to at most one sponsor, forming the referral forest the MLM engine walks.
type User struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string     `gorm:"column:name;type:text;not null"`
	Email        string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	Phone        *string    `gorm:"column:phone;type:text"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	ReferralCode string     `gorm:"column:referral_code;type:text;not null;uniqueIndex"`
	ReferrerID   *uuid.UUID `gorm:"column:referrer_id;type:uuid;index"`
	IsAdmin      bool       `gorm:"column:is_admin;not null;default:false"`
	IsVerified   bool       `gorm:"column:is_verified;not null;default:false"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
