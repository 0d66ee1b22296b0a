package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/internal/cart"
	"github.com/imimarket/imimarket-backend/internal/catalog"
	"github.com/imimarket/imimarket-backend/internal/coupons"
	"github.com/imimarket/imimarket-backend/internal/notifications"
	"github.com/imimarket/imimarket-backend/internal/wallet"
	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
)

// txRunner runs a closure inside one database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service turns carts into paid orders.
type Service interface {
	// Checkout prices the cart, applies an optional coupon, pays the total
	// from the buyer's wallet (triggering the referral fan-out) and clears
	// the cart, all in one transaction.
	Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

type CheckoutInput struct {
	UserID     uuid.UUID
	CouponCode string
}

// Deps bundles the checkout collaborators.
type Deps struct {
	Runner        txRunner
	Repo          Repository
	Cart          cart.Service
	Catalog       catalog.Service
	Coupons       coupons.Service
	Wallet        wallet.Service
	Notifications notifications.Service
}

type service struct {
	runner  txRunner
	repo    Repository
	cart    cart.Service
	catalog catalog.Service
	coupons coupons.Service
	wallet  wallet.Service
	notify  notifications.Service
}

// NewService wires the order service.
func NewService(deps Deps) (Service, error) {
	if deps.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if deps.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if deps.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart service required")
	}
	if deps.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog service required")
	}
	if deps.Coupons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupons service required")
	}
	if deps.Wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet service required")
	}
	if deps.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	return &service{
		runner:  deps.Runner,
		repo:    deps.Repo,
		cart:    deps.Cart,
		catalog: deps.Catalog,
		coupons: deps.Coupons,
		wallet:  deps.Wallet,
		notify:  deps.Notifications,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	items, err := s.cart.List(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	priced, currency, subtotal, err := s.priceCart(ctx, items)
	if err != nil {
		return nil, err
	}

	couponCode := strings.TrimSpace(input.CouponCode)
	discount := decimal.Zero
	if couponCode != "" {
		quote, err := s.coupons.Quote(ctx, couponCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = quote.Discount
	}
	total := subtotal.Sub(discount).Round(2)

	var (
		order   *models.Order
		pending []*models.Notification
	)
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		var couponID *uuid.UUID
		if couponCode != "" {
			coupon, err := s.coupons.Redeem(ctx, tx, couponCode)
			if err != nil {
				return err
			}
			couponID = &coupon.ID
		}

		// A fully discounted cart costs nothing; no debit, no fan-out.
		if total.IsPositive() {
			_, notes, err := s.wallet.PurchaseInTx(ctx, tx, wallet.PurchaseInput{
				UserID:      input.UserID,
				Currency:    currency,
				Amount:      total,
				Description: describeCart(priced),
			})
			if err != nil {
				return err
			}
			pending = append(pending, notes...)
		}

		order = &models.Order{
			UserID:         input.UserID,
			Currency:       currency,
			SubtotalAmount: subtotal,
			DiscountAmount: discount,
			TotalAmount:    total,
			CouponID:       couponID,
			Status:         enums.OrderStatusPaid,
			Items:          priced,
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := s.cart.Clear(ctx, tx, input.UserID); err != nil {
			return err
		}

		note, err := s.notify.Create(ctx, tx, notifications.CreateInput{
			UserID:      &input.UserID,
			Category:    enums.NotificationCategoryOrder,
			Subcategory: "paid",
			Message:     fmt.Sprintf("Order paid: %s %s", total.StringFixed(2), currency),
			Data:        map[string]string{"orderId": order.ID.String()},
		})
		if err != nil {
			return err
		}
		pending = append(pending, note)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, note := range pending {
		s.notify.Deliver(ctx, note)
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
	}
	if order == nil || order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

// priceCart freezes each cart line at its current catalog price. All lines
// must share one currency so the order can be paid from a single balance.
func (s *service) priceCart(ctx context.Context, items []models.CartItem) ([]models.OrderItem, enums.Currency, decimal.Decimal, error) {
	var (
		currency enums.Currency
		subtotal decimal.Decimal
		lines    = make([]models.OrderItem, 0, len(items))
	)
	for _, item := range items {
		priced, err := s.catalog.PriceFor(ctx, item.ProductID, item.VariantID, item.SelectedValue)
		if err != nil {
			return nil, "", decimal.Zero, err
		}
		if currency == "" {
			currency = priced.Currency
		} else if currency != priced.Currency {
			return nil, "", decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
				"cart mixes currencies; checkout one currency at a time")
		}

		lineTotal := priced.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))).Round(2)
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, models.OrderItem{
			ProductID:     item.ProductID,
			ProductName:   priced.Product.Name,
			SelectedValue: item.SelectedValue,
			UnitPrice:     priced.UnitPrice,
			Qty:           item.Qty,
		})
	}
	return lines, currency, subtotal.Round(2), nil
}

func describeCart(lines []models.OrderItem) string {
	if len(lines) == 1 && lines[0].Qty == 1 {
		return lines[0].ProductName
	}
	total := 0
	for _, line := range lines {
		total += line.Qty
	}
	return fmt.Sprintf("%d items", total)
}
