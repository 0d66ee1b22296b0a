package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
)

// fakeRepository keeps users in memory and can simulate unique violations.
type fakeRepository struct {
	byID map[uuid.UUID]*models.User

	// codeCollisions makes the next N creates fail with a referral code
	// unique violation.
	codeCollisions int

	createCalls int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byID: map[uuid.UUID]*models.User{}}
}

func (f *fakeRepository) add(user *models.User) *models.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.byID[user.ID] = user
	return user
}

func (f *fakeRepository) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(_ context.Context, user *models.User) error {
	f.createCalls++
	for _, existing := range f.byID {
		if existing.Email == user.Email {
			return errors.New(`duplicate key value violates unique constraint "idx_users_email"`)
		}
	}
	if f.codeCollisions > 0 {
		f.codeCollisions--
		return errors.New(`duplicate key value violates unique constraint "idx_users_referral_code"`)
	}
	user.ID = uuid.New()
	f.byID[user.ID] = user
	return nil
}

func (f *fakeRepository) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.byID[id], nil
}

func (f *fakeRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range f.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) FindByReferralCode(_ context.Context, code string) (*models.User, error) {
	for _, user := range f.byID {
		if user.ReferralCode == code {
			return user, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) UpdateReferrer(_ context.Context, id uuid.UUID, referrerID *uuid.UUID) error {
	user, ok := f.byID[id]
	if !ok {
		return errors.New("no such user")
	}
	user.ReferrerID = referrerID
	return nil
}

func (f *fakeRepository) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	user, ok := f.byID[id]
	if !ok {
		return errors.New("no such user")
	}
	user.IsVerified = verified
	return nil
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
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

func TestCreateNormalizesEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)

	user, err := svc.Create(context.Background(), nil, CreateInput{
		Name:         "  Ada  ",
		Email:        "  Ada@Example.COM ",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("email = %q", user.Email)
	}
	if user.Name != "Ada" {
		t.Fatalf("name = %q", user.Name)
	}
	if len(user.ReferralCode) != referralCodeLength {
		t.Fatalf("referral code length = %d", len(user.ReferralCode))
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)
	repo.add(&models.User{Email: "taken@example.com", ReferralCode: "AAAABBBBCCCC"})

	_, err := svc.Create(context.Background(), nil, CreateInput{
		Name:         "Dup",
		Email:        "taken@example.com",
		PasswordHash: "hash",
	})
	if codeOf(err) != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if repo.createCalls != 1 {
		t.Fatalf("duplicate email must not be retried, got %d attempts", repo.createCalls)
	}
}

func TestCreateRetriesReferralCodeCollision(t *testing.T) {
	repo := newFakeRepository()
	repo.codeCollisions = 2
	svc := newServiceWithRepo(t, repo)

	user, err := svc.Create(context.Background(), nil, CreateInput{
		Name:         "Unlucky",
		Email:        "unlucky@example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == uuid.Nil {
		t.Fatalf("user not persisted")
	}
	if repo.createCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", repo.createCalls)
	}
}

func TestCreateExhaustsReferralCodeRetries(t *testing.T) {
	repo := newFakeRepository()
	repo.codeCollisions = referralCodeRetries
	svc := newServiceWithRepo(t, repo)

	_, err := svc.Create(context.Background(), nil, CreateInput{
		Name:         "Unlucky",
		Email:        "unlucky@example.com",
		PasswordHash: "hash",
	})
	if codeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error after retries, got %v", err)
	}
	if repo.createCalls != referralCodeRetries {
		t.Fatalf("expected %d attempts, got %d", referralCodeRetries, repo.createCalls)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newServiceWithRepo(t, newFakeRepository())

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing email", CreateInput{Name: "A", PasswordHash: "h"}},
		{"missing name", CreateInput{Email: "a@b.c", PasswordHash: "h"}},
		{"missing hash", CreateInput{Name: "A", Email: "a@b.c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), nil, tc.input)
			if codeOf(err) != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGetByIDNotFound(t *testing.T) {
	svc := newServiceWithRepo(t, newFakeRepository())

	_, err := svc.GetByID(context.Background(), uuid.New())
	if codeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func linkChain(repo *fakeRepository, length int) []*models.User {
	users := make([]*models.User, 0, length)
	var parent *uuid.UUID
	for i := length - 1; i >= 0; i-- {
		user := repo.add(&models.User{Email: uuid.NewString() + "@example.com"})
		user.ReferrerID = parent
		id := user.ID
		parent = &id
		users = append([]*models.User{user}, users...)
	}
	return users
}

func TestUplineBounded(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)

	// chain[0] is the leaf; its sponsors follow.
	chain := linkChain(repo, 10)

	upline, err := svc.Upline(context.Background(), chain[0].ID, 7)
	if err != nil {
		t.Fatalf("Upline: %v", err)
	}
	if len(upline) != 7 {
		t.Fatalf("expected 7 sponsors, got %d", len(upline))
	}
	for i, sponsor := range upline {
		if sponsor.ID != chain[i+1].ID {
			t.Fatalf("upline[%d] is the wrong sponsor", i)
		}
	}
}

func TestUplineShortChain(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)
	chain := linkChain(repo, 3)

	upline, err := svc.Upline(context.Background(), chain[0].ID, 7)
	if err != nil {
		t.Fatalf("Upline: %v", err)
	}
	if len(upline) != 2 {
		t.Fatalf("expected 2 sponsors, got %d", len(upline))
	}
}

func TestUplineStopsOnCycle(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)

	a := repo.add(&models.User{Email: "a@example.com"})
	b := repo.add(&models.User{Email: "b@example.com"})
	aID, bID := a.ID, b.ID
	a.ReferrerID = &bID
	b.ReferrerID = &aID

	upline, err := svc.Upline(context.Background(), a.ID, 7)
	if err != nil {
		t.Fatalf("Upline: %v", err)
	}
	if len(upline) != 1 {
		t.Fatalf("cyclic chain must stop after the repeat, got %d entries", len(upline))
	}
	if upline[0].ID != b.ID {
		t.Fatalf("expected only the direct sponsor")
	}
}

func TestUplineDanglingReferrer(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)

	ghost := uuid.New()
	leaf := repo.add(&models.User{Email: "leaf@example.com", ReferrerID: &ghost})

	upline, err := svc.Upline(context.Background(), leaf.ID, 7)
	if err != nil {
		t.Fatalf("Upline: %v", err)
	}
	if len(upline) != 0 {
		t.Fatalf("dangling pointer must end the chain, got %d entries", len(upline))
	}
}

func TestSetReferrer(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)

	sponsor := repo.add(&models.User{Email: "sponsor@example.com", ReferralCode: "SPONSOR00001"})
	user := repo.add(&models.User{Email: "user@example.com", ReferralCode: "USER00000001"})

	if err := svc.SetReferrer(context.Background(), user.ID, "SPONSOR00001"); err != nil {
		t.Fatalf("SetReferrer: %v", err)
	}
	if user.ReferrerID == nil || *user.ReferrerID != sponsor.ID {
		t.Fatalf("referrer not recorded")
	}
}

func TestSetReferrerAlreadySet(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)

	sponsor := repo.add(&models.User{Email: "sponsor@example.com", ReferralCode: "SPONSOR00001"})
	sponsorID := sponsor.ID
	user := repo.add(&models.User{Email: "user@example.com", ReferrerID: &sponsorID})

	err := svc.SetReferrer(context.Background(), user.ID, "SPONSOR00001")
	if codeOf(err) != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSetReferrerSelf(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)

	user := repo.add(&models.User{Email: "user@example.com", ReferralCode: "SELF00000001"})

	err := svc.SetReferrer(context.Background(), user.ID, "SELF00000001")
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetReferrerRejectsCycle(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)

	// root sponsors mid; attaching root under mid would close a loop.
	root := repo.add(&models.User{Email: "root@example.com", ReferralCode: "ROOT00000001"})
	rootID := root.ID
	mid := repo.add(&models.User{Email: "mid@example.com", ReferralCode: "MID000000001", ReferrerID: &rootID})

	err := svc.SetReferrer(context.Background(), root.ID, mid.ReferralCode)
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
	if root.ReferrerID != nil {
		t.Fatalf("referrer must stay unset on rejection")
	}
}

func TestSetReferrerUnknownCode(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)
	user := repo.add(&models.User{Email: "user@example.com"})

	err := svc.SetReferrer(context.Background(), user.ID, "NOSUCHCODE01")
	if codeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetVerified(t *testing.T) {
	repo := newFakeRepository()
	svc := newServiceWithRepo(t, repo)
	user := repo.add(&models.User{Email: "user@example.com"})

	if err := svc.SetVerified(context.Background(), nil, user.ID, true); err != nil {
		t.Fatalf("SetVerified: %v", err)
	}
	if !user.IsVerified {
		t.Fatalf("verified flag not set")
	}
}
