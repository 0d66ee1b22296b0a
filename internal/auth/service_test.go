package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

var testJWT = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "imimarket-test",
	ExpirationMinutes: 60,
}

type fakeRunner struct{}

func (fakeRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeUsers struct {
	byID    map[uuid.UUID]*models.User
	byEmail map[string]*models.User
	byCode  map[string]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:    map[uuid.UUID]*models.User{},
		byEmail: map[string]*models.User{},
		byCode:  map[string]*models.User{},
	}
}

func (f *fakeUsers) add(user *models.User) *models.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.byID[user.ID] = user
	f.byEmail[user.Email] = user
	f.byCode[user.ReferralCode] = user
	return user
}

func (f *fakeUsers) Create(_ context.Context, _ *gorm.DB, input users.CreateInput) (*models.User, error) {
	if _, taken := f.byEmail[input.Email]; taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}
	return f.add(&models.User{
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: input.PasswordHash,
		ReferralCode: uuid.NewString()[:12],
		ReferrerID:   input.ReferrerID,
	}), nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

func (f *fakeUsers) GetByReferralCode(_ context.Context, code string) (*models.User, error) {
	user, ok := f.byCode[code]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "referral code not found")
	}
	return user, nil
}

func (f *fakeUsers) Upline(_ context.Context, _ uuid.UUID, _ int) ([]models.User, error) {
	return nil, nil
}

func (f *fakeUsers) SetReferrer(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func (f *fakeUsers) SetVerified(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ bool) error {
	return nil
}

type seededRow struct {
	userID   uuid.UUID
	currency enums.Currency
}

type fakeLedger struct {
	seeded []seededRow
}

func (f *fakeLedger) WithTx(_ *gorm.DB) ledger.Repository { return f }

func (f *fakeLedger) Get(_ context.Context, _ uuid.UUID, _ enums.Currency) (*models.WalletBalance, error) {
	return nil, nil
}

func (f *fakeLedger) ListByUser(_ context.Context, _ uuid.UUID) ([]models.WalletBalance, error) {
	return nil, nil
}

func (f *fakeLedger) Adjust(_ context.Context, _ uuid.UUID, _ enums.Currency, _ decimal.Decimal) (*models.WalletBalance, error) {
	return nil, nil
}

func (f *fakeLedger) FindByCardNumber(_ context.Context, _ string) (*models.WalletBalance, error) {
	return nil, nil
}

func (f *fakeLedger) EnsureRow(_ context.Context, userID uuid.UUID, currency enums.Currency) error {
	f.seeded = append(f.seeded, seededRow{userID: userID, currency: currency})
	return nil
}

type fakeNotify struct {
	created   []notifications.CreateInput
	delivered int
}

func (f *fakeNotify) Create(_ context.Context, _ *gorm.DB, input notifications.CreateInput) (*models.Notification, error) {
	f.created = append(f.created, input)
	return &models.Notification{ID: uuid.New(), UserID: input.UserID, Message: input.Message}, nil
}

func (f *fakeNotify) Deliver(_ context.Context, _ *models.Notification) { f.delivered++ }

func (f *fakeNotify) ListUnread(_ context.Context, _ uuid.UUID) ([]models.Notification, error) {
	return nil, nil
}

func (f *fakeNotify) MarkAllRead(_ context.Context, _ uuid.UUID) (int64, error) { return 0, nil }

type harness struct {
	svc    Service
	users  *fakeUsers
	ledger *fakeLedger
	notify *fakeNotify
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		users:  newFakeUsers(),
		ledger: &fakeLedger{},
		notify: &fakeNotify{},
	}
	svc, err := NewService(Deps{
		Runner:        fakeRunner{},
		Users:         h.users,
		Balances:      h.ledger,
		Notifications: h.notify,
		JWT:           testJWT,
		// Zero values clamp to the cheapest argon2 parameters.
		Password: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	h.svc = svc
	return h
}

func codeOf(err error) pkgerrors.Code {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	return typed.Code()
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	session, err := h.svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if session.AccessToken == "" {
		t.Fatalf("expected an access token")
	}
	if session.User.PasswordHash == "correct-horse" {
		t.Fatalf("password stored in the clear")
	}

	claims, err := pkgauth.ParseAccessToken(testJWT, session.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.UserID != session.User.ID {
		t.Fatalf("token user = %s, want %s", claims.UserID, session.User.ID)
	}

	if len(h.ledger.seeded) != len(enums.SeedCurrencies) {
		t.Fatalf("seeded %d balance rows, want %d", len(h.ledger.seeded), len(enums.SeedCurrencies))
	}
	for _, row := range h.ledger.seeded {
		if row.userID != session.User.ID {
			t.Fatalf("balance seeded for the wrong user")
		}
	}
	if h.notify.delivered != 1 {
		t.Fatalf("expected the welcome notification delivered")
	}
}

func TestRegisterShortPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "short",
	})
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterWithReferralCode(t *testing.T) {
	h := newHarness(t)
	sponsor := h.users.add(&models.User{Email: "sponsor@example.com", ReferralCode: "SPONSOR00001"})

	session, err := h.svc.Register(context.Background(), RegisterInput{
		Name:         "Ada",
		Email:        "ada@example.com",
		Password:     "correct-horse",
		ReferralCode: "SPONSOR00001",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if session.User.ReferrerID == nil || *session.User.ReferrerID != sponsor.ID {
		t.Fatalf("sponsor not attached")
	}
}

func TestRegisterUnknownReferralCode(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Register(context.Background(), RegisterInput{
		Name:         "Ada",
		Email:        "ada@example.com",
		Password:     "correct-horse",
		ReferralCode: "NOSUCHCODE01",
	})
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("unknown referral code is a caller error, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	hash, err := security.HashPassword("correct-horse", config.PasswordConfig{})
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h.users.add(&models.User{Email: "ada@example.com", PasswordHash: hash})

	session, err := h.svc.Login(context.Background(), LoginInput{
		Email:    "ada@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.AccessToken == "" {
		t.Fatalf("expected an access token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	hash, err := security.HashPassword("correct-horse", config.PasswordConfig{})
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h.users.add(&models.User{Email: "ada@example.com", PasswordHash: hash})

	_, err = h.svc.Login(context.Background(), LoginInput{
		Email:    "ada@example.com",
		Password: "wrong-horse",
	})
	if codeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Login(context.Background(), LoginInput{
		Email:    "ghost@example.com",
		Password: "whatever-works",
	})
	if codeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("unknown emails must not be distinguishable, got %v", err)
	}
}
