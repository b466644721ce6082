package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/agmlabs/storebuilder-backend/api/routes"
	"github.com/agmlabs/storebuilder-backend/internal/auth"
	"github.com/agmlabs/storebuilder-backend/internal/inventory"
	"github.com/agmlabs/storebuilder-backend/internal/notifications"
	"github.com/agmlabs/storebuilder-backend/internal/orders"
	"github.com/agmlabs/storebuilder-backend/internal/payments"
	"github.com/agmlabs/storebuilder-backend/internal/payouts"
	"github.com/agmlabs/storebuilder-backend/internal/products"
	"github.com/agmlabs/storebuilder-backend/internal/stores"
	"github.com/agmlabs/storebuilder-backend/pkg/config"
	"github.com/agmlabs/storebuilder-backend/pkg/db"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/migrate"
	"github.com/agmlabs/storebuilder-backend/pkg/monnify"
	"github.com/agmlabs/storebuilder-backend/pkg/redis"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	monnifyClient, err := monnify.NewClient(cfg.Monnify, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create monnify client", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create token issuer", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.NewUserRepository(dbClient.DB()), tokens, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	storesRepo := stores.NewRepository(dbClient.DB())

	initiator, err := payments.NewInitiator(paymentsRepo, monnifyClient, logg, cfg.App.BaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment initiator", err)
		os.Exit(1)
	}

	notifier := notifications.New(logg, notifications.NewLogSender(logg))

	reconciler, err := payments.NewReconciler(paymentsRepo, ordersRepo, storesRepo, dbClient, monnifyClient, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(
		ordersRepo,
		storesRepo,
		products.NewRepository(dbClient.DB()),
		inventory.NewLedger(),
		dbClient,
		initiator,
		notifier,
		logg,
		cfg.Fees.AGMFeePercent,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	payoutService, err := payouts.NewService(payouts.NewRepository(dbClient.DB()), monnifyClient, logg, cfg.Monnify.WalletAccount)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
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
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Tokens:        tokens,
			AuthService:   authService,
			OrderService:  orderService,
			Reconciler:    reconciler,
			PayoutService: payoutService,
			Monnify:       monnifyClient,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
