package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/imimarket/imimarket-backend/api/routes"
	authsvc "github.com/imimarket/imimarket-backend/internal/auth"
	"github.com/imimarket/imimarket-backend/internal/cart"
	"github.com/imimarket/imimarket-backend/internal/catalog"
	"github.com/imimarket/imimarket-backend/internal/coupons"
	"github.com/imimarket/imimarket-backend/internal/ledger"
	"github.com/imimarket/imimarket-backend/internal/mlm"
	"github.com/imimarket/imimarket-backend/internal/notifications"
	"github.com/imimarket/imimarket-backend/internal/orders"
	"github.com/imimarket/imimarket-backend/internal/transactions"
	"github.com/imimarket/imimarket-backend/internal/users"
	"github.com/imimarket/imimarket-backend/internal/verification"
	"github.com/imimarket/imimarket-backend/internal/wallet"
	"github.com/imimarket/imimarket-backend/pkg/config"
	"github.com/imimarket/imimarket-backend/pkg/db"
	"github.com/imimarket/imimarket-backend/pkg/logger"
	"github.com/imimarket/imimarket-backend/pkg/metrics"
	"github.com/imimarket/imimarket-backend/pkg/migrate"
	"github.com/imimarket/imimarket-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	walletMetrics := metrics.NewWalletMetrics(registry)

	svcs, err := buildServices(cfg, logg, dbClient, redisClient, walletMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, svcs),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	walletMetrics *metrics.WalletMetrics,
) (routes.Services, error) {
	conn := dbClient.DB()

	usersRepo := users.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)
	transactionsRepo := transactions.NewRepository(conn)
	notificationsRepo := notifications.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	couponsRepo := coupons.NewRepository(conn)
	verificationRepo := verification.NewRepository(conn)

	rates, err := cfg.Wallet.LevelRates()
	if err != nil {
		return routes.Services{}, err
	}

	usersService, err := users.NewService(usersRepo)
	if err != nil {
		return routes.Services{}, err
	}
	transactionsService, err := transactions.NewService(transactionsRepo, len(rates))
	if err != nil {
		return routes.Services{}, err
	}

	sink, err := notifications.NewRedisSink(redisClient)
	if err != nil {
		return routes.Services{}, err
	}
	notificationsService, err := notifications.NewService(notificationsRepo, sink, logg)
	if err != nil {
		return routes.Services{}, err
	}

	calculator, err := mlm.NewCalculator(usersService, rates)
	if err != nil {
		return routes.Services{}, err
	}

	walletService, err := wallet.NewService(wallet.Deps{
		Runner:        dbClient,
		Balances:      ledgerRepo,
		Transactions:  transactionsService,
		Notifications: notificationsService,
		Rewards:       calculator,
		Metrics:       walletMetrics,
		Logger:        logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	authService, err := authsvc.NewService(authsvc.Deps{
		Runner:        dbClient,
		Users:         usersService,
		Balances:      ledgerRepo,
		Notifications: notificationsService,
		JWT:           cfg.JWT,
		Password:      cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}

	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		return routes.Services{}, err
	}
	cartService, err := cart.NewService(cartRepo, catalogService)
	if err != nil {
		return routes.Services{}, err
	}
	couponsService, err := coupons.NewService(couponsRepo)
	if err != nil {
		return routes.Services{}, err
	}
	ordersService, err := orders.NewService(orders.Deps{
		Runner:        dbClient,
		Repo:          ordersRepo,
		Cart:          cartService,
		Catalog:       catalogService,
		Coupons:       couponsService,
		Wallet:        walletService,
		Notifications: notificationsService,
	})
	if err != nil {
		return routes.Services{}, err
	}
	verificationService, err := verification.NewService(verification.Deps{
		Runner:        dbClient,
		Repo:          verificationRepo,
		Users:         usersService,
		Notifications: notificationsService,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:          authService,
		Users:         usersService,
		Wallet:        walletService,
		Transactions:  transactionsService,
		Notifications: notificationsService,
		Catalog:       catalogService,
		Cart:          cartService,
		Orders:        ordersService,
		Coupons:       couponsService,
		Verification:  verificationService,
		RewardLevels:  len(rates),
	}, nil
}
