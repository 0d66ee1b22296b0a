package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/internal/ledger"
	"github.com/imimarket/imimarket-backend/internal/notifications"
	"github.com/imimarket/imimarket-backend/internal/users"
	pkgauth "github.com/imimarket/imimarket-backend/pkg/auth"
	"github.com/imimarket/imimarket-backend/pkg/config"
	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/security"
)

// txRunner runs a closure inside one database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service handles registration and credential exchange.
type Service interface {
	// Register creates the account and seeds its wallet balances in one
	// transaction, then issues an access token.
	Register(ctx context.Context, input RegisterInput) (*Session, error)
	Login(ctx context.Context, input LoginInput) (*Session, error)
}

type RegisterInput struct {
	Name         string
	Email        string
	Phone        *string
	Password     string
	ReferralCode string
}

type LoginInput struct {
	Email    string
	Password string
}

// Session pairs the authenticated user with a freshly minted access token.
type Session struct {
	User        *models.User
	AccessToken string
}

// Deps bundles the auth service collaborators.
type Deps struct {
	Runner        txRunner
	Users         users.Service
	Balances      ledger.Repository
	Notifications notifications.Service
	JWT           config.JWTConfig
	Password      config.PasswordConfig
}

type service struct {
	runner   txRunner
	users    users.Service
	ledger   ledger.Repository
	notify   notifications.Service
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	timeFunc func() time.Time
}

// NewService wires the auth service.
func NewService(deps Deps) (Service, error) {
	if deps.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if deps.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users service required")
	}
	if deps.Balances == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger repository required")
	}
	if deps.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	return &service{
		runner:   deps.Runner,
		users:    deps.Users,
		ledger:   deps.Balances,
		notify:   deps.Notifications,
		jwtCfg:   deps.JWT,
		pwCfg:    deps.Password,
		timeFunc: time.Now,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	var referrerID *uuid.UUID
	if code := strings.TrimSpace(input.ReferralCode); code != "" {
		sponsor, err := s.users.GetByReferralCode(ctx, code)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown referral code")
			}
			return nil, err
		}
		referrerID = &sponsor.ID
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var (
		user    *models.User
		welcome *models.Notification
	)
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.users.Create(ctx, tx, users.CreateInput{
			Name:         input.Name,
			Email:        input.Email,
			Phone:        input.Phone,
			PasswordHash: hash,
			ReferrerID:   referrerID,
		})
		if err != nil {
			return err
		}
		user = created

		balances := s.ledger.WithTx(tx)
		for _, currency := range enums.SeedCurrencies {
			if err := balances.EnsureRow(ctx, created.ID, currency); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed wallet balance")
			}
		}

		note, err := s.notify.Create(ctx, tx, notifications.CreateInput{
			UserID:      &created.ID,
			Category:    enums.NotificationCategorySystem,
			Subcategory: "welcome",
			Message:     "Welcome! Your wallet accounts are ready.",
		})
		if err != nil {
			return err
		}
		welcome = note
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.Deliver(ctx, welcome)

	return s.newSession(user)
}

func (s *service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
	}

	return s.newSession(user)
}

func (s *service) newSession(user *models.User) (*Session, error) {
	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.timeFunc(), pkgauth.AccessTokenPayload{
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &Session{User: user, AccessToken: token}, nil
}
