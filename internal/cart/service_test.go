package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/internal/catalog"
	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/pagination"
)

type fakeRepository struct {
	items map[uuid.UUID]*models.CartItem
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{items: map[uuid.UUID]*models.CartItem{}}
}

func (f *fakeRepository) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeRepository) Upsert(_ context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeRepository) FindLine(_ context.Context, userID, productID uuid.UUID, variantID *uuid.UUID) (*models.CartItem, error) {
	for _, item := range f.items {
		if item.UserID != userID || item.ProductID != productID {
			continue
		}
		if variantID == nil && item.VariantID == nil {
			return item, nil
		}
		if variantID != nil && item.VariantID != nil && *variantID == *item.VariantID {
			return item, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) FindByID(_ context.Context, id uuid.UUID) (*models.CartItem, error) {
	return f.items[id], nil
}

func (f *fakeRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	for _, item := range f.items {
		if item.UserID == userID {
			rows = append(rows, *item)
		}
	}
	return rows, nil
}

func (f *fakeRepository) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.items, id)
	return nil
}

func (f *fakeRepository) Clear(_ context.Context, userID uuid.UUID) error {
	for id, item := range f.items {
		if item.UserID == userID {
			delete(f.items, id)
		}
	}
	return nil
}

// fakeCatalog accepts any known product id and rejects the rest the way the
// real catalog does.
type fakeCatalog struct {
	known map[uuid.UUID]bool
}

func (f *fakeCatalog) PriceFor(_ context.Context, productID uuid.UUID, _ *uuid.UUID, _ *string) (*catalog.PricedProduct, error) {
	if !f.known[productID] {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &catalog.PricedProduct{
		UnitPrice: decimal.NewFromInt(100),
		Currency:  enums.CurrencyRUB,
	}, nil
}

func (f *fakeCatalog) List(_ context.Context, _ catalog.ListFilter, _ pagination.Params) (*catalog.Page, error) {
	return &catalog.Page{}, nil
}

func (f *fakeCatalog) Get(_ context.Context, _ uuid.UUID) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (f *fakeCatalog) Create(_ context.Context, _ catalog.CreateProductInput) (*models.Product, error) {
	return nil, nil
}

func (f *fakeCatalog) SetActive(_ context.Context, _ uuid.UUID, _ bool) (*models.Product, error) {
	return nil, nil
}

func newHarness(t *testing.T) (Service, *fakeRepository, uuid.UUID) {
	t.Helper()
	repo := newFakeRepository()
	productID := uuid.New()
	svc, err := NewService(repo, &fakeCatalog{known: map[uuid.UUID]bool{productID: true}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, productID
}

func codeOf(err error) pkgerrors.Code {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	return typed.Code()
}

func TestAddItem(t *testing.T) {
	svc, repo, productID := newHarness(t)
	userID := uuid.New()

	item, err := svc.AddItem(context.Background(), AddItemInput{
		UserID:    userID,
		ProductID: productID,
		Qty:       2,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if item.Qty != 2 {
		t.Fatalf("qty = %d, want 2", item.Qty)
	}
	if len(repo.items) != 1 {
		t.Fatalf("expected one line, got %d", len(repo.items))
	}
}

func TestAddItemMergesExistingLine(t *testing.T) {
	svc, repo, productID := newHarness(t)
	userID := uuid.New()

	first, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: productID, Qty: 2})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	second, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: productID, Qty: 3})
	if err != nil {
		t.Fatalf("AddItem again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same line to be updated")
	}
	if second.Qty != 5 {
		t.Fatalf("qty = %d, want 5", second.Qty)
	}
	if len(repo.items) != 1 {
		t.Fatalf("expected one line, got %d", len(repo.items))
	}
}

func TestAddItemDistinctVariantsKeepSeparateLines(t *testing.T) {
	svc, repo, productID := newHarness(t)
	userID := uuid.New()
	variantID := uuid.New()
	value := "M"

	if _, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: productID, Qty: 1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), AddItemInput{
		UserID: userID, ProductID: productID, VariantID: &variantID, SelectedValue: &value, Qty: 1,
	}); err != nil {
		t.Fatalf("AddItem variant: %v", err)
	}
	if len(repo.items) != 2 {
		t.Fatalf("expected two lines, got %d", len(repo.items))
	}
}

func TestAddItemCapsMergedQty(t *testing.T) {
	svc, _, productID := newHarness(t)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: productID, Qty: 98}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	item, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: productID, Qty: 50})
	if err != nil {
		t.Fatalf("AddItem merge: %v", err)
	}
	if item.Qty != maxLineQty {
		t.Fatalf("qty = %d, want cap %d", item.Qty, maxLineQty)
	}
}

func TestAddItemQtyOutOfRange(t *testing.T) {
	svc, _, productID := newHarness(t)

	for _, qty := range []int{0, -1, maxLineQty + 1} {
		_, err := svc.AddItem(context.Background(), AddItemInput{
			UserID:    uuid.New(),
			ProductID: productID,
			Qty:       qty,
		})
		if codeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("qty %d: expected validation error, got %v", qty, err)
		}
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc, _, _ := newHarness(t)

	_, err := svc.AddItem(context.Background(), AddItemInput{
		UserID:    uuid.New(),
		ProductID: uuid.New(),
		Qty:       1,
	})
	if codeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateQty(t *testing.T) {
	svc, _, productID := newHarness(t)
	userID := uuid.New()

	item, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: productID, Qty: 1})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	updated, err := svc.UpdateQty(context.Background(), userID, item.ID, 7)
	if err != nil {
		t.Fatalf("UpdateQty: %v", err)
	}
	if updated.Qty != 7 {
		t.Fatalf("qty = %d, want 7", updated.Qty)
	}
}

func TestUpdateQtyForeignLine(t *testing.T) {
	svc, _, productID := newHarness(t)
	owner := uuid.New()

	item, err := svc.AddItem(context.Background(), AddItemInput{UserID: owner, ProductID: productID, Qty: 1})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	_, err = svc.UpdateQty(context.Background(), uuid.New(), item.ID, 2)
	if codeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("another user's line must read as missing, got %v", err)
	}
}

func TestRemoveItem(t *testing.T) {
	svc, repo, productID := newHarness(t)
	userID := uuid.New()

	item, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: productID, Qty: 1})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := svc.RemoveItem(context.Background(), userID, item.ID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(repo.items) != 0 {
		t.Fatalf("line not removed")
	}
}

func TestClear(t *testing.T) {
	svc, repo, productID := newHarness(t)
	userID := uuid.New()
	other := uuid.New()

	if _, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: productID, Qty: 1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), AddItemInput{UserID: other, ProductID: productID, Qty: 1}); err != nil {
		t.Fatalf("AddItem other: %v", err)
	}

	if err := svc.Clear(context.Background(), nil, userID); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if len(repo.items) != 1 {
		t.Fatalf("expected only the other user's line to survive, got %d", len(repo.items))
	}
	remaining, err := svc.List(context.Background(), other)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("other user's cart must survive, got %d lines", len(remaining))
	}
	mine, err := svc.List(context.Background(), userID)
	if err != nil {
		t.Fatalf("List mine: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("cart not cleared")
	}
}
