package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/api/responses"
	"github.com/imimarket/imimarket-backend/api/validators"
	"github.com/imimarket/imimarket-backend/internal/coupons"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/logger"
)

type createCouponRequest struct {
	Code         string     `json:"code" validate:"required,min=2,max=64"`
	DiscountType string     `json:"discountType" validate:"required"`
	Value        string     `json:"value" validate:"required"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	MaxUses      *int       `json:"maxUses,omitempty" validate:"omitempty,min=1"`
}

type quoteCouponRequest struct {
	Code     string `json:"code" validate:"required,min=2,max=64"`
	Subtotal string `json:"subtotal" validate:"required"`
}

// AdminCreateCoupon registers a new discount code.
func AdminCreateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCouponRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discountType, err := enums.ParseDiscountType(strings.TrimSpace(req.DiscountType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}
		value, err := decimal.NewFromString(req.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount value"))
			return
		}

		coupon, err := svc.Create(r.Context(), coupons.CreateInput{
			Code:         req.Code,
			DiscountType: discountType,
			Value:        value,
			ExpiresAt:    req.ExpiresAt,
			MaxUses:      req.MaxUses,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, coupon)
	}
}

// QuoteCoupon previews the discount a code grants on a subtotal.
func QuoteCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quoteCouponRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subtotal, err := decimal.NewFromString(req.Subtotal)
		if err != nil || !subtotal.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must be a positive amount"))
			return
		}

		quote, err := svc.Quote(r.Context(), req.Code, subtotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"code":     quote.Coupon.Code,
			"discount": quote.Discount.StringFixed(2),
		})
	}
}
