package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/logger"
)

type fakeRepository struct {
	created []*models.Notification

	listFn        func(ctx context.Context, userID uuid.UUID) ([]models.Notification, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (f *fakeRepository) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(_ context.Context, notification *models.Notification) error {
	notification.ID = uuid.New()
	f.created = append(f.created, notification)
	return nil
}

func (f *fakeRepository) ListUnreadByUser(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

type fakeSink struct {
	delivered []*models.Notification
	err       error
}

func (f *fakeSink) Deliver(_ context.Context, notification *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, notification)
	return nil
}

func newServiceWith(t *testing.T, repo Repository, sink Sink) Service {
	t.Helper()
	svc, err := NewService(repo, sink, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func codeOf(err error) pkgerrors.Code {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	return typed.Code()
}

func TestCreatePersistsRow(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWith(t, repo, nil)
	userID := uuid.New()

	note, err := svc.Create(context.Background(), nil, CreateInput{
		UserID:      &userID,
		Category:    enums.NotificationCategoryWallet,
		Subcategory: " deposit ",
		Message:     "Deposited 10.00 RUB",
		Data:        map[string]string{"kind": "deposit"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one row, got %d", len(repo.created))
	}
	if note.Subcategory != "deposit" {
		t.Fatalf("subcategory not trimmed: %q", note.Subcategory)
	}

	var data map[string]string
	if err := json.Unmarshal(note.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["kind"] != "deposit" {
		t.Fatalf("data roundtrip mismatch: %v", data)
	}
}

func TestCreateBroadcast(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWith(t, repo, nil)

	note, err := svc.Create(context.Background(), nil, CreateInput{
		Category: enums.NotificationCategorySystem,
		Message:  "maintenance window tonight",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if note.UserID != nil {
		t.Fatalf("broadcast must carry no user id")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newServiceWith(t, &fakeRepository{}, nil)

	_, err := svc.Create(context.Background(), nil, CreateInput{
		Category: "gossip",
		Message:  "hello",
	})
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for category, got %v", err)
	}

	_, err = svc.Create(context.Background(), nil, CreateInput{
		Category: enums.NotificationCategoryWallet,
		Message:  "   ",
	})
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for message, got %v", err)
	}
}

func TestDeliverPushesToSink(t *testing.T) {
	sink := &fakeSink{}
	svc := newServiceWith(t, &fakeRepository{}, sink)

	note := &models.Notification{ID: uuid.New(), Message: "hi"}
	svc.Deliver(context.Background(), note)

	if len(sink.delivered) != 1 {
		t.Fatalf("expected one delivery, got %d", len(sink.delivered))
	}
}

func TestDeliverSwallowsSinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("redis down")}
	svc := newServiceWith(t, &fakeRepository{}, sink)

	// Must not panic or propagate; the stored row remains authoritative.
	svc.Deliver(context.Background(), &models.Notification{ID: uuid.New(), Message: "hi"})
}

func TestDeliverIgnoresNil(t *testing.T) {
	sink := &fakeSink{}
	svc := newServiceWith(t, &fakeRepository{}, sink)

	svc.Deliver(context.Background(), nil)
	if len(sink.delivered) != 0 {
		t.Fatalf("nil notification must not be delivered")
	}
}

func TestMarkAllRead(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(_ context.Context, _ uuid.UUID) (int64, error) {
			return 4, nil
		},
	}
	svc := newServiceWith(t, repo, nil)

	updated, err := svc.MarkAllRead(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if updated != 4 {
		t.Fatalf("updated = %d, want 4", updated)
	}
}

func TestListUnreadRequiresUser(t *testing.T) {
	svc := newServiceWith(t, &fakeRepository{}, nil)

	_, err := svc.ListUnread(context.Background(), uuid.Nil)
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
