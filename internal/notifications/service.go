package notifications

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/logger"
)

// Service persists notifications and fans them out to the delivery sink.
type Service interface {
	// Create persists a notification inside the caller's transaction and
	// returns the stored row. Delivery happens separately, after commit.
	Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Notification, error)
	// Deliver pushes an already-persisted notification to the sink.
	// Failures are logged and swallowed.
	Deliver(ctx context.Context, notification *models.Notification)
	ListUnread(ctx context.Context, userID uuid.UUID) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// CreateInput describes a notification to persist. A nil UserID makes it a
// broadcast notice.
type CreateInput struct {
	UserID      *uuid.UUID
	Category    enums.NotificationCategory
	Subcategory string
	Message     string
	Data        any
}

type service struct {
	repo Repository
	sink Sink
	logg *logger.Logger
}

// NewService wires a notification service. A nil sink disables streaming
// delivery; stored rows remain the source of truth either way.
func NewService(repo Repository, sink Sink, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &service{repo: repo, sink: sink, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Notification, error) {
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification category")
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message required")
	}

	var data json.RawMessage
	if input.Data != nil {
		encoded, err := json.Marshal(input.Data)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification data")
		}
		data = encoded
	}

	row := &models.Notification{
		UserID:      input.UserID,
		Category:    input.Category,
		Subcategory: strings.TrimSpace(input.Subcategory),
		Message:     input.Message,
		Data:        data,
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return row, nil
}

func (s *service) Deliver(ctx context.Context, notification *models.Notification) {
	if notification == nil {
		return
	}
	if err := s.sink.Deliver(ctx, notification); err != nil {
		s.logg.Warn(
			s.logg.WithField(ctx, "notification_id", notification.ID.String()),
			"notification delivery failed: "+err.Error(),
		)
	}
}

func (s *service) ListUnread(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListUnreadByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return rows, nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return updated, nil
}
