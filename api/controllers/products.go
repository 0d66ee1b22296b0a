package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/api/responses"
	"github.com/imimarket/imimarket-backend/api/validators"
	"github.com/imimarket/imimarket-backend/internal/catalog"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/logger"
	"github.com/imimarket/imimarket-backend/pkg/pagination"
)

type createProductRequest struct {
	Name        string                 `json:"name" validate:"required,min=2,max=200"`
	Description string                 `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       string                 `json:"price" validate:"required"`
	Currency    string                 `json:"currency" validate:"required"`
	Category    string                 `json:"category,omitempty" validate:"omitempty,max=100"`
	Variants    []createVariantRequest `json:"variants,omitempty" validate:"omitempty,dive"`
}

type createVariantRequest struct {
	Attribute  string   `json:"attribute" validate:"required,min=1,max=64"`
	Values     []string `json:"values" validate:"required,min=1,dive,min=1,max=64"`
	PriceDelta string   `json:"priceDelta,omitempty"`
}

type setProductActiveRequest struct {
	IsActive bool `json:"isActive"`
}

// ListProducts returns a catalog page filtered by category.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := pagination.Params{Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			params.Limit = value
		}

		filter := catalog.ListFilter{
			Category:   strings.TrimSpace(r.URL.Query().Get("category")),
			ActiveOnly: true,
		}

		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"products":   page.Products,
			"nextCursor": page.NextCursor,
		})
	}
}

// GetProduct returns one catalog entry with its variants.
func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(chi.URLParam(r, "productId"), "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminCreateProduct adds a catalog entry.
func AdminCreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, price, err := parseMoney(req.Currency, req.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.CreateProductInput{
			Name:        req.Name,
			Description: req.Description,
			Price:       price,
			Currency:    currency,
			Category:    req.Category,
		}
		for _, v := range req.Variants {
			delta := decimal.Zero
			if strings.TrimSpace(v.PriceDelta) != "" {
				parsed, err := decimal.NewFromString(v.PriceDelta)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price delta"))
					return
				}
				delta = parsed
			}
			input.Variants = append(input.Variants, catalog.CreateVariantInput{
				Attribute:  v.Attribute,
				Values:     v.Values,
				PriceDelta: delta,
			})
		}

		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AdminSetProductActive toggles a product's availability.
func AdminSetProductActive(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(chi.URLParam(r, "productId"), "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setProductActiveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.SetActive(r.Context(), productID, req.IsActive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
