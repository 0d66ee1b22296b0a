package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// Notification stores in-app notification payloads. A nil UserID means a
// broadcast/system notice.
type Notification struct {
	ID          uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      *uuid.UUID                 `gorm:"column:user_id;type:uuid;index"`
	Category    enums.NotificationCategory `gorm:"column:category;type:notification_category;not null"`
	Subcategory string                     `gorm:"column:subcategory;type:text;not null"`
	Message     string                     `gorm:"column:message;type:text;not null"`
	Data        json.RawMessage            `gorm:"column:data;type:jsonb"`
	IsRead      bool                       `gorm:"column:is_read;not null;default:false"`
	CreatedAt   time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
