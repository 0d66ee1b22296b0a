package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/internal/catalog"
	"github.com/imimarket/imimarket-backend/pkg/db/models"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
)

const maxLineQty = 99

// Service manages a user's cart lines.
type Service interface {
	AddItem(ctx context.Context, input AddItemInput) (*models.CartItem, error)
	UpdateQty(ctx context.Context, userID, itemID uuid.UUID, qty int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	// Clear drops all cart lines for the user, inside the caller's
	// transaction when one is supplied. Checkout uses this after paying.
	Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type AddItemInput struct {
	UserID        uuid.UUID
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	SelectedValue *string
	Qty           int
}

type service struct {
	repo    Repository
	catalog catalog.Service
}

// NewService wires a cart service with the catalog used for validation.
func NewService(repo Repository, catalogSvc catalog.Service) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository required")
	}
	if catalogSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog service required")
	}
	return &service{repo: repo, catalog: catalogSvc}, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.CartItem, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Qty <= 0 || input.Qty > maxLineQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range")
	}

	// Validates the product is active and the variant value is offered.
	if _, err := s.catalog.PriceFor(ctx, input.ProductID, input.VariantID, input.SelectedValue); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindLine(ctx, input.UserID, input.ProductID, input.VariantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart line")
	}

	item := existing
	if item == nil {
		item = &models.CartItem{
			UserID:        input.UserID,
			ProductID:     input.ProductID,
			VariantID:     input.VariantID,
			SelectedValue: input.SelectedValue,
			Qty:           input.Qty,
		}
	} else {
		item.Qty += input.Qty
		if item.Qty > maxLineQty {
			item.Qty = maxLineQty
		}
	}

	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
	}
	return item, nil
}

func (s *service) UpdateQty(ctx context.Context, userID, itemID uuid.UUID, qty int) (*models.CartItem, error) {
	if qty <= 0 || qty > maxLineQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range")
	}
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	item.Qty = qty
	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
	}
	return item, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, item.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
	}
	return items, nil
}

func (s *service) Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := s.repo.WithTx(tx).Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) ownedItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	if userID == uuid.Nil || itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and item id required")
	}
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart line")
	}
	if item == nil || item.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return item, nil
}
