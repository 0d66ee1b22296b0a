package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/pkg/db"
	"github.com/imimarket/imimarket-backend/pkg/db/models"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
)

const (
	referralCodeLength  = 12
	referralCodeRetries = 5
)

// Service exposes account lookups and the referral graph operations the
// reward engine depends on.
type Service interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	// Upline returns the referrer chain of userID, nearest sponsor first,
	// bounded to maxLevels entries. The walk stops early at the root or on a
	// repeated node, so a corrupted cyclic chain cannot loop.
	Upline(ctx context.Context, userID uuid.UUID, maxLevels int) ([]models.User, error)
	// SetReferrer attaches a sponsor to a user that registered without one.
	// Rejects self-sponsorship and any assignment that would close a cycle.
	SetReferrer(ctx context.Context, userID uuid.UUID, referralCode string) error
	SetVerified(ctx context.Context, tx *gorm.DB, userID uuid.UUID, verified bool) error
}

// CreateInput carries the fields needed to persist a new account. The
// password is expected to arrive already hashed.
type CreateInput struct {
	Name         string
	Email        string
	Phone        *string
	PasswordHash string
	ReferrerID   *uuid.UUID
}

type service struct {
	repo Repository
}

// NewService wires a user service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if input.PasswordHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password hash required")
	}

	repo := s.repo.WithTx(tx)
	var lastErr error
	for attempt := 0; attempt < referralCodeRetries; attempt++ {
		user := &models.User{
			Name:         strings.TrimSpace(input.Name),
			Email:        email,
			Phone:        input.Phone,
			PasswordHash: input.PasswordHash,
			ReferralCode: newReferralCode(),
			ReferrerID:   input.ReferrerID,
		}
		err := repo.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		// A duplicate email is a caller error; a duplicate referral code
		// just means we drew an unlucky code and should retry.
		if existing, lookupErr := repo.FindByEmail(ctx, email); lookupErr == nil && existing != nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, "allocate referral code")
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user by email")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

func (s *service) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral code required")
	}
	user, err := s.repo.FindByReferralCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user by referral code")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "referral code not found")
	}
	return user, nil
}

func (s *service) Upline(ctx context.Context, userID uuid.UUID, maxLevels int) ([]models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if maxLevels <= 0 {
		return nil, nil
	}

	start, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user")
	}
	if start == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	visited := map[uuid.UUID]struct{}{userID: {}}
	chain := make([]models.User, 0, maxLevels)
	current := start
	for len(chain) < maxLevels {
		if current.ReferrerID == nil {
			break
		}
		next := *current.ReferrerID
		if _, seen := visited[next]; seen {
			break
		}
		visited[next] = struct{}{}

		sponsor, err := s.repo.FindByID(ctx, next)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "walk upline")
		}
		if sponsor == nil {
			// Dangling referrer pointer; treat the chain as ending here.
			break
		}
		chain = append(chain, *sponsor)
		current = sponsor
	}
	return chain, nil
}

func (s *service) SetReferrer(ctx context.Context, userID uuid.UUID, referralCode string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.ReferrerID != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "referrer already set")
	}

	sponsor, err := s.GetByReferralCode(ctx, referralCode)
	if err != nil {
		return err
	}
	if sponsor.ID == userID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot refer yourself")
	}

	// Refuse an assignment whose upline already contains the user: that
	// would close a cycle and break the bounded reward walk.
	visited := map[uuid.UUID]struct{}{sponsor.ID: {}}
	current := sponsor
	for current.ReferrerID != nil {
		next := *current.ReferrerID
		if next == userID {
			return pkgerrors.New(pkgerrors.CodeValidation, "referral assignment would create a cycle")
		}
		if _, seen := visited[next]; seen {
			break
		}
		visited[next] = struct{}{}
		ancestor, err := s.repo.FindByID(ctx, next)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "walk upline")
		}
		if ancestor == nil {
			break
		}
		current = ancestor
	}

	sponsorID := sponsor.ID
	if err := s.repo.UpdateReferrer(ctx, userID, &sponsorID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set referrer")
	}
	return nil
}

func (s *service) SetVerified(ctx context.Context, tx *gorm.DB, userID uuid.UUID, verified bool) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := s.repo.WithTx(tx).SetVerified(ctx, userID, verified); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set verified flag")
	}
	return nil
}

func newReferralCode() string {
	compact := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(compact[:referralCodeLength])
}
