package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/courseforge-backend/api/routes"
	"github.com/angelmondragon/courseforge-backend/internal/commissions"
	"github.com/angelmondragon/courseforge-backend/internal/purchases"
	"github.com/angelmondragon/courseforge-backend/internal/settings"
	"github.com/angelmondragon/courseforge-backend/internal/sponsors"
	"github.com/angelmondragon/courseforge-backend/internal/users"
	stripewebhook "github.com/angelmondragon/courseforge-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/courseforge-backend/pkg/config"
	"github.com/angelmondragon/courseforge-backend/pkg/db"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
	"github.com/angelmondragon/courseforge-backend/pkg/metrics"
	"github.com/angelmondragon/courseforge-backend/pkg/migrate"
	"github.com/angelmondragon/courseforge-backend/pkg/redis"
	"github.com/angelmondragon/courseforge-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	settingsService, err := settings.NewService(settings.NewRepository(dbClient.DB()), cfg.Commission.Rate())
	requireResource(ctx, logg, "settings service", err)

	payoutLocker, err := redis.NewLocker(redisClient, cfg.Commission.PayoutLockScope, cfg.Commission.PayoutLockTTL)
	requireResource(ctx, logg, "payout locker", err)

	userRepo := users.NewRepository(dbClient.DB())
	commissionService, err := commissions.NewService(commissions.ServiceParams{
		Repo:    commissions.NewRepository(dbClient.DB()),
		Users:   userRepo,
		Rates:   settingsService,
		TX:      dbClient,
		Locker:  payoutLocker,
		Metrics: metrics.NewCommissionMetrics(registry),
		Logger:  logg,
	})
	requireResource(ctx, logg, "commission service", err)

	purchaseService, err := purchases.NewService(purchases.NewRepository(dbClient.DB()), commissionService, dbClient, logg)
	requireResource(ctx, logg, "purchase service", err)

	sponsorService, err := sponsors.NewService(userRepo, dbClient, purchaseService, logg)
	requireResource(ctx, logg, "sponsor service", err)

	deps := routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Gatherer:    registry,
		Commissions: commissionService,
		Sponsors:    sponsorService,
		Settings:    settingsService,
	}

	if cfg.Stripe.WebhookSecret != "" {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe client", err)
		webhookService, err := stripewebhook.NewService(purchaseService, logg)
		requireResource(ctx, logg, "stripe webhook service", err)
		guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, stripewebhook.DefaultGuardScope)
		requireResource(ctx, logg, "stripe webhook guard", err)

		deps.StripeClient = stripeClient
		deps.StripeWebhookService = webhookService
		deps.StripeWebhookGuard = guard
		deps.WebhookMetrics = metrics.NewWebhookMetrics(registry)
	} else {
		logg.Warn(ctx, "stripe webhook secret not set, webhook route disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	multierr.AppendInto(&shutdownErr, server.Shutdown(shutdownCtx))
	multierr.AppendInto(&shutdownErr, redisClient.Close())
	multierr.AppendInto(&shutdownErr, dbClient.Close())
	if shutdownErr != nil {
		logg.Error(ctx, "shutdown completed with errors", shutdownErr)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
