package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/pagination"
)

// Service exposes catalog browsing and admin product management.
type Service interface {
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, input CreateProductInput) (*models.Product, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Product, error)
	// PriceFor resolves the effective unit price of a product plus an
	// optional variant delta, and validates the selected variant value.
	PriceFor(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, selectedValue *string) (*PricedProduct, error)
}

// Page is one catalog listing page with the cursor to fetch the next.
type Page struct {
	Products   []models.Product
	NextCursor string
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    enums.Currency
	Category    string
	Variants    []CreateVariantInput
}

type CreateVariantInput struct {
	Attribute  string
	Values     []string
	PriceDelta decimal.Decimal
}

// PricedProduct is a catalog entry resolved to its effective unit price.
type PricedProduct struct {
	Product   *models.Product
	UnitPrice decimal.Decimal
	Currency  enums.Currency
}

type service struct {
	repo Repository
}

// NewService wires a catalog service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	products, err := s.repo.List(ctx, filter, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	page := &Page{Products: products}
	if len(products) > limit {
		page.Products = products[:limit]
		last := page.Products[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	product := &models.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Price:       input.Price.Round(2),
		Currency:    input.Currency,
		Category:    strings.TrimSpace(input.Category),
		IsActive:    true,
	}
	for _, v := range input.Variants {
		if strings.TrimSpace(v.Attribute) == "" || len(v.Values) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant attribute and values required")
		}
		product.Variants = append(product.Variants, models.ProductVariant{
			Attribute:  strings.TrimSpace(v.Attribute),
			Values:     v.Values,
			PriceDelta: v.PriceDelta.Round(2),
		})
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	product.IsActive = active
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return product, nil
}

func (s *service) PriceFor(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, selectedValue *string) (*PricedProduct, error) {
	product, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	price := product.Price
	if variantID != nil {
		variant, err := s.repo.FindVariant(ctx, *variantID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find variant")
		}
		if variant == nil || variant.ProductID != product.ID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product")
		}
		if selectedValue == nil || !containsValue(variant.Values, *selectedValue) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected variant value is not offered")
		}
		price = price.Add(variant.PriceDelta)
	}

	return &PricedProduct{
		Product:   product,
		UnitPrice: price.Round(2),
		Currency:  product.Currency,
	}, nil
}

func containsValue(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}
