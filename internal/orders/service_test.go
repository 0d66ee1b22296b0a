package orders

import (
	"context"
	"testing"

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
	"github.com/imimarket/imimarket-backend/pkg/pagination"
)

type fakeRunner struct{}

func (fakeRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	orders []*models.Order
}

func (f *fakeRepository) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(_ context.Context, order *models.Order) error {
	order.ID = uuid.New()
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	for _, order := range f.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			rows = append(rows, *order)
		}
	}
	return rows, nil
}

type fakeCart struct {
	items   []models.CartItem
	cleared bool
}

func (f *fakeCart) AddItem(_ context.Context, _ cart.AddItemInput) (*models.CartItem, error) {
	return nil, nil
}

func (f *fakeCart) UpdateQty(_ context.Context, _, _ uuid.UUID, _ int) (*models.CartItem, error) {
	return nil, nil
}

func (f *fakeCart) RemoveItem(_ context.Context, _, _ uuid.UUID) error { return nil }

func (f *fakeCart) List(_ context.Context, _ uuid.UUID) ([]models.CartItem, error) {
	return f.items, nil
}

func (f *fakeCart) Clear(_ context.Context, _ *gorm.DB, _ uuid.UUID) error {
	f.cleared = true
	f.items = nil
	return nil
}

// fakeCatalog prices each known product at a fixed unit price and currency.
type fakeCatalog struct {
	prices     map[uuid.UUID]decimal.Decimal
	currencies map[uuid.UUID]enums.Currency
}

func (f *fakeCatalog) PriceFor(_ context.Context, productID uuid.UUID, _ *uuid.UUID, _ *string) (*catalog.PricedProduct, error) {
	price, ok := f.prices[productID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &catalog.PricedProduct{
		Product:   &models.Product{ID: productID, Name: "item"},
		UnitPrice: price,
		Currency:  f.currencies[productID],
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

type fakeCoupons struct {
	coupon   *models.Coupon
	discount decimal.Decimal
	redeemed int
}

func (f *fakeCoupons) Create(_ context.Context, _ coupons.CreateInput) (*models.Coupon, error) {
	return nil, nil
}

func (f *fakeCoupons) Quote(_ context.Context, code string, _ decimal.Decimal) (*coupons.Quote, error) {
	if f.coupon == nil || f.coupon.Code != code {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return &coupons.Quote{Coupon: f.coupon, Discount: f.discount}, nil
}

func (f *fakeCoupons) Redeem(_ context.Context, _ *gorm.DB, code string) (*models.Coupon, error) {
	if f.coupon == nil || f.coupon.Code != code {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	f.redeemed++
	return f.coupon, nil
}

type fakeWallet struct {
	purchases []wallet.PurchaseInput
	err       error
}

func (f *fakeWallet) Balances(_ context.Context, _ uuid.UUID) ([]models.WalletBalance, error) {
	return nil, nil
}

func (f *fakeWallet) Deposit(_ context.Context, _ wallet.DepositInput) (*models.WalletBalance, error) {
	return nil, nil
}

func (f *fakeWallet) Withdraw(_ context.Context, _ wallet.WithdrawInput) (*models.WalletBalance, error) {
	return nil, nil
}

func (f *fakeWallet) Convert(_ context.Context, _ wallet.ConvertInput) (*wallet.ConvertResult, error) {
	return nil, nil
}

func (f *fakeWallet) Purchase(_ context.Context, _ wallet.PurchaseInput) (*wallet.PurchaseResult, error) {
	return nil, nil
}

func (f *fakeWallet) PurchaseInTx(_ context.Context, _ *gorm.DB, input wallet.PurchaseInput) (*wallet.PurchaseResult, []*models.Notification, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.purchases = append(f.purchases, input)
	note := &models.Notification{ID: uuid.New(), Message: "purchase"}
	return &wallet.PurchaseResult{RewardsPaid: 1}, []*models.Notification{note}, nil
}

func (f *fakeWallet) TransferByCard(_ context.Context, _ wallet.TransferInput) (*wallet.TransferResult, error) {
	return nil, nil
}

type fakeNotify struct {
	created   int
	delivered int
}

func (f *fakeNotify) Create(_ context.Context, _ *gorm.DB, input notifications.CreateInput) (*models.Notification, error) {
	f.created++
	return &models.Notification{ID: uuid.New(), UserID: input.UserID, Message: input.Message}, nil
}

func (f *fakeNotify) Deliver(_ context.Context, _ *models.Notification) {
	f.delivered++
}

func (f *fakeNotify) ListUnread(_ context.Context, _ uuid.UUID) ([]models.Notification, error) {
	return nil, nil
}

func (f *fakeNotify) MarkAllRead(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

type harness struct {
	svc     Service
	repo    *fakeRepository
	cart    *fakeCart
	coupons *fakeCoupons
	wallet  *fakeWallet
	notify  *fakeNotify
}

func newHarness(t *testing.T, catalogSvc catalog.Service) *harness {
	t.Helper()
	h := &harness{
		repo:    &fakeRepository{},
		cart:    &fakeCart{},
		coupons: &fakeCoupons{},
		wallet:  &fakeWallet{},
		notify:  &fakeNotify{},
	}
	svc, err := NewService(Deps{
		Runner:        fakeRunner{},
		Repo:          h.repo,
		Cart:          h.cart,
		Catalog:       catalogSvc,
		Coupons:       h.coupons,
		Wallet:        h.wallet,
		Notifications: h.notify,
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

func singleProductCatalog(productID uuid.UUID, price string, currency enums.Currency) *fakeCatalog {
	return &fakeCatalog{
		prices:     map[uuid.UUID]decimal.Decimal{productID: decimal.RequireFromString(price)},
		currencies: map[uuid.UUID]enums.Currency{productID: currency},
	}
}

func TestCheckout(t *testing.T) {
	productID := uuid.New()
	h := newHarness(t, singleProductCatalog(productID, "50", enums.CurrencyRUB))
	userID := uuid.New()
	h.cart.items = []models.CartItem{
		{ID: uuid.New(), UserID: userID, ProductID: productID, Qty: 3},
	}

	order, err := h.svc.Checkout(context.Background(), CheckoutInput{UserID: userID})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if !order.SubtotalAmount.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("subtotal = %s, want 150", order.SubtotalAmount)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("total = %s, want 150", order.TotalAmount)
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("status = %s", order.Status)
	}
	if len(order.Items) != 1 || order.Items[0].Qty != 3 {
		t.Fatalf("items not frozen: %+v", order.Items)
	}

	if len(h.wallet.purchases) != 1 {
		t.Fatalf("expected one wallet purchase, got %d", len(h.wallet.purchases))
	}
	if !h.wallet.purchases[0].Amount.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("purchase amount = %s", h.wallet.purchases[0].Amount)
	}
	if !h.cart.cleared {
		t.Fatalf("cart not cleared")
	}
	// Wallet purchase note plus order note.
	if h.notify.delivered != 2 {
		t.Fatalf("delivered = %d, want 2", h.notify.delivered)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	h := newHarness(t, &fakeCatalog{})

	_, err := h.svc.Checkout(context.Background(), CheckoutInput{UserID: uuid.New()})
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckoutMixedCurrencies(t *testing.T) {
	rubProduct := uuid.New()
	imiProduct := uuid.New()
	catalogSvc := &fakeCatalog{
		prices: map[uuid.UUID]decimal.Decimal{
			rubProduct: decimal.NewFromInt(10),
			imiProduct: decimal.NewFromInt(10),
		},
		currencies: map[uuid.UUID]enums.Currency{
			rubProduct: enums.CurrencyRUB,
			imiProduct: enums.CurrencyIMI,
		},
	}
	h := newHarness(t, catalogSvc)
	userID := uuid.New()
	h.cart.items = []models.CartItem{
		{ID: uuid.New(), UserID: userID, ProductID: rubProduct, Qty: 1},
		{ID: uuid.New(), UserID: userID, ProductID: imiProduct, Qty: 1},
	}

	_, err := h.svc.Checkout(context.Background(), CheckoutInput{UserID: userID})
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(h.wallet.purchases) != 0 {
		t.Fatalf("no payment expected")
	}
}

func TestCheckoutAppliesCoupon(t *testing.T) {
	productID := uuid.New()
	h := newHarness(t, singleProductCatalog(productID, "100", enums.CurrencyRUB))
	userID := uuid.New()
	h.cart.items = []models.CartItem{
		{ID: uuid.New(), UserID: userID, ProductID: productID, Qty: 1},
	}
	h.coupons.coupon = &models.Coupon{ID: uuid.New(), Code: "SAVE30"}
	h.coupons.discount = decimal.RequireFromString("30")

	order, err := h.svc.Checkout(context.Background(), CheckoutInput{UserID: userID, CouponCode: "SAVE30"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if !order.DiscountAmount.Equal(decimal.RequireFromString("30")) {
		t.Fatalf("discount = %s", order.DiscountAmount)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("70")) {
		t.Fatalf("total = %s, want 70", order.TotalAmount)
	}
	if order.CouponID == nil || *order.CouponID != h.coupons.coupon.ID {
		t.Fatalf("coupon not recorded on order")
	}
	if h.coupons.redeemed != 1 {
		t.Fatalf("coupon redeemed %d times", h.coupons.redeemed)
	}
	if !h.wallet.purchases[0].Amount.Equal(decimal.RequireFromString("70")) {
		t.Fatalf("purchase amount = %s, want the discounted total", h.wallet.purchases[0].Amount)
	}
}

func TestCheckoutFullyDiscountedSkipsPayment(t *testing.T) {
	productID := uuid.New()
	h := newHarness(t, singleProductCatalog(productID, "25", enums.CurrencyRUB))
	userID := uuid.New()
	h.cart.items = []models.CartItem{
		{ID: uuid.New(), UserID: userID, ProductID: productID, Qty: 1},
	}
	h.coupons.coupon = &models.Coupon{ID: uuid.New(), Code: "FREE"}
	h.coupons.discount = decimal.RequireFromString("25")

	order, err := h.svc.Checkout(context.Background(), CheckoutInput{UserID: userID, CouponCode: "FREE"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if !order.TotalAmount.IsZero() {
		t.Fatalf("total = %s, want 0", order.TotalAmount)
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("status = %s", order.Status)
	}
	if len(h.wallet.purchases) != 0 {
		t.Fatalf("zero-total order must not touch the wallet")
	}
	if !h.cart.cleared {
		t.Fatalf("cart not cleared")
	}
}

func TestCheckoutWalletFailureAborts(t *testing.T) {
	productID := uuid.New()
	h := newHarness(t, singleProductCatalog(productID, "100", enums.CurrencyRUB))
	userID := uuid.New()
	h.cart.items = []models.CartItem{
		{ID: uuid.New(), UserID: userID, ProductID: productID, Qty: 1},
	}
	h.wallet.err = pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient RUB funds")

	_, err := h.svc.Checkout(context.Background(), CheckoutInput{UserID: userID})
	if codeOf(err) != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if len(h.repo.orders) != 0 {
		t.Fatalf("no order expected on failed payment")
	}
	if h.notify.delivered != 0 {
		t.Fatalf("no delivery expected on failure")
	}
}

func TestGetOwnershipCheck(t *testing.T) {
	h := newHarness(t, &fakeCatalog{})
	owner := uuid.New()
	order := &models.Order{UserID: owner}
	if err := h.repo.Create(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	if _, err := h.svc.Get(context.Background(), owner, order.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}

	_, err := h.svc.Get(context.Background(), uuid.New(), order.ID)
	if codeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("foreign order must read as missing, got %v", err)
	}
}
