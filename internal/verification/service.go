package verification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/internal/notifications"
	"github.com/imimarket/imimarket-backend/internal/users"
	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
)

// txRunner runs a closure inside one database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service handles identity verification submissions and admin review.
type Service interface {
	Submit(ctx context.Context, userID uuid.UUID, documentRef string) (*models.VerificationRequest, error)
	ListPending(ctx context.Context) ([]models.VerificationRequest, error)
	ListOwn(ctx context.Context, userID uuid.UUID) ([]models.VerificationRequest, error)
	// Review resolves a pending request. Approval also flips the user's
	// verified flag, in the same transaction as the status change.
	Review(ctx context.Context, input ReviewInput) (*models.VerificationRequest, error)
}

type ReviewInput struct {
	RequestID  uuid.UUID
	ReviewerID uuid.UUID
	Approve    bool
	Comment    string
}

// Deps bundles the verification collaborators.
type Deps struct {
	Runner        txRunner
	Repo          Repository
	Users         users.Service
	Notifications notifications.Service
}

type service struct {
	runner   txRunner
	repo     Repository
	users    users.Service
	notify   notifications.Service
	timeFunc func() time.Time
}

// NewService wires the verification service.
func NewService(deps Deps) (Service, error) {
	if deps.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if deps.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "verification repository required")
	}
	if deps.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users service required")
	}
	if deps.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	return &service{
		runner:   deps.Runner,
		repo:     deps.Repo,
		users:    deps.Users,
		notify:   deps.Notifications,
		timeFunc: time.Now,
	}, nil
}

func (s *service) Submit(ctx context.Context, userID uuid.UUID, documentRef string) (*models.VerificationRequest, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	documentRef = strings.TrimSpace(documentRef)
	if documentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document reference required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "account is already verified")
	}

	pending, err := s.repo.FindPendingByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find pending request")
	}
	if pending != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a verification request is already pending")
	}

	request := &models.VerificationRequest{
		UserID:      userID,
		DocumentRef: documentRef,
		Status:      enums.VerificationStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create verification request")
	}
	return request, nil
}

func (s *service) ListPending(ctx context.Context) ([]models.VerificationRequest, error) {
	requests, err := s.repo.ListByStatus(ctx, enums.VerificationStatusPending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending requests")
	}
	return requests, nil
}

func (s *service) ListOwn(ctx context.Context, userID uuid.UUID) ([]models.VerificationRequest, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	requests, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verification requests")
	}
	return requests, nil
}

func (s *service) Review(ctx context.Context, input ReviewInput) (*models.VerificationRequest, error) {
	if input.RequestID == uuid.Nil || input.ReviewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id and reviewer id required")
	}

	request, err := s.repo.FindByID(ctx, input.RequestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find verification request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "verification request not found")
	}
	if request.Status != enums.VerificationStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "verification request already reviewed")
	}

	status := enums.VerificationStatusRejected
	message := "Your identity verification was rejected."
	if input.Approve {
		status = enums.VerificationStatusApproved
		message = "Your identity verification was approved."
	}

	now := s.timeFunc()
	request.Status = status
	request.ReviewedBy = &input.ReviewerID
	request.ReviewedAt = &now
	if comment := strings.TrimSpace(input.Comment); comment != "" {
		request.Comment = &comment
	}

	var note *models.Notification
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update verification request")
		}
		if input.Approve {
			if err := s.users.SetVerified(ctx, tx, request.UserID, true); err != nil {
				return err
			}
		}
		created, err := s.notify.Create(ctx, tx, notifications.CreateInput{
			UserID:      &request.UserID,
			Category:    enums.NotificationCategoryVerification,
			Subcategory: string(status),
			Message:     message,
		})
		if err != nil {
			return err
		}
		note = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.Deliver(ctx, note)
	return request, nil
}
