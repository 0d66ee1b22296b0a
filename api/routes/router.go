package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imimarket/imimarket-backend/api/controllers"
	"github.com/imimarket/imimarket-backend/api/middleware"
	"github.com/imimarket/imimarket-backend/internal/auth"
	"github.com/imimarket/imimarket-backend/internal/cart"
	"github.com/imimarket/imimarket-backend/internal/catalog"
	"github.com/imimarket/imimarket-backend/internal/coupons"
	"github.com/imimarket/imimarket-backend/internal/notifications"
	"github.com/imimarket/imimarket-backend/internal/orders"
	"github.com/imimarket/imimarket-backend/internal/transactions"
	"github.com/imimarket/imimarket-backend/internal/users"
	"github.com/imimarket/imimarket-backend/internal/verification"
	"github.com/imimarket/imimarket-backend/internal/wallet"
	"github.com/imimarket/imimarket-backend/pkg/config"
	"github.com/imimarket/imimarket-backend/pkg/db"
	"github.com/imimarket/imimarket-backend/pkg/logger"
	"github.com/imimarket/imimarket-backend/pkg/redis"
)

// Services bundles every wired domain service the router exposes.
type Services struct {
	Auth          auth.Service
	Users         users.Service
	Wallet        wallet.Service
	Transactions  transactions.Service
	Notifications notifications.Service
	Catalog       catalog.Service
	Cart          cart.Service
	Orders        orders.Service
	Coupons       coupons.Service
	Verification  verification.Service
	RewardLevels  int
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).
			Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/login", controllers.AuthLogin(svcs.Auth, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(svcs.Catalog, logg))
		r.Get("/{productId}", controllers.GetProduct(svcs.Catalog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.UserProfile(svcs.Users, logg))
			r.Post("/me/referrer", controllers.UserSetReferrer(svcs.Users, logg))
			r.Get("/me/upline", controllers.UserUpline(svcs.Users, svcs.RewardLevels, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balances", controllers.WalletBalances(svcs.Wallet, logg))
			r.Post("/deposit", controllers.WalletDeposit(svcs.Wallet, logg))
			r.Post("/withdraw", controllers.WalletWithdraw(svcs.Wallet, logg))
			r.Post("/convert", controllers.WalletConvert(svcs.Wallet, logg))
			r.Post("/purchase", controllers.WalletPurchase(svcs.Wallet, logg))
			r.Post("/transfer", controllers.WalletTransfer(svcs.Wallet, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.ListTransactions(svcs.Transactions, logg))
			r.Get("/income-by-level", controllers.IncomeByLevel(svcs.Transactions, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartList(svcs.Cart, logg))
			r.Post("/", controllers.CartAddItem(svcs.Cart, logg))
			r.Patch("/{itemId}", controllers.CartUpdateQty(svcs.Cart, logg))
			r.Delete("/{itemId}", controllers.CartRemoveItem(svcs.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
		})
		r.Post("/checkout", controllers.Checkout(svcs.Orders, logg))

		r.Post("/coupons/quote", controllers.QuoteCoupon(svcs.Coupons, logg))

		r.Route("/verification", func(r chi.Router) {
			r.Post("/", controllers.SubmitVerification(svcs.Verification, logg))
			r.Get("/", controllers.ListOwnVerifications(svcs.Verification, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(svcs.Catalog, logg))
			r.Patch("/{productId}/active", controllers.AdminSetProductActive(svcs.Catalog, logg))
		})
		r.Post("/coupons", controllers.AdminCreateCoupon(svcs.Coupons, logg))
		r.Route("/verification", func(r chi.Router) {
			r.Get("/pending", controllers.AdminListPendingVerifications(svcs.Verification, logg))
			r.Post("/{requestId}/review", controllers.AdminReviewVerification(svcs.Verification, logg))
		})
	})

	return r
}
