package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/courseforge-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/courseforge-backend/api/controllers/webhooks"
	"github.com/angelmondragon/courseforge-backend/api/middleware"
	"github.com/angelmondragon/courseforge-backend/internal/commissions"
	"github.com/angelmondragon/courseforge-backend/internal/settings"
	"github.com/angelmondragon/courseforge-backend/internal/sponsors"
	stripewebhook "github.com/angelmondragon/courseforge-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/courseforge-backend/pkg/config"
	"github.com/angelmondragon/courseforge-backend/pkg/enums"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
	"github.com/angelmondragon/courseforge-backend/pkg/metrics"
	"github.com/angelmondragon/courseforge-backend/pkg/redis"
	"github.com/angelmondragon/courseforge-backend/pkg/stripe"
)

// Dependencies carries the services the HTTP surface dispatches to.
type Dependencies struct {
	DB                   controllers.Pinger
	Redis                *redis.Client
	Gatherer             prometheus.Gatherer
	Commissions          commissions.Service
	Sponsors             sponsors.Service
	Settings             settings.Service
	StripeClient         *stripe.Client
	StripeWebhookService *stripewebhook.Service
	StripeWebhookGuard   *stripewebhook.IdempotencyGuard
	WebhookMetrics       *metrics.WebhookMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	if len(cfg.App.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.App.CORSAllowedOrigins))
	}

	var store redis.IdempotencyStore
	if deps.Redis != nil {
		store = deps.Redis
	}
	idem := func(ttl time.Duration) func(http.Handler) http.Handler {
		return middleware.Idempotency(store, logg, ttl)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(deps)))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	if deps.StripeClient != nil && deps.StripeWebhookService != nil && deps.StripeWebhookGuard != nil {
		r.Route("/api/v1/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhookService, deps.StripeClient, deps.StripeWebhookGuard, deps.WebhookMetrics, logg))
		})
	}

	// Any authenticated user can sponsor others, so affiliate reads only
	// require a token and are scoped to the caller.
	r.Route("/api/v1/affiliate", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/commissions", controllers.AffiliateCommissions(deps.Commissions, logg))
		r.Get("/commissions/totals", controllers.AffiliateTotals(deps.Commissions, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserTypeAdmin))

		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", controllers.AdminListCommissions(deps.Commissions, logg))
			r.Get("/totals", controllers.AdminCommissionTotals(deps.Commissions, logg))
			r.With(idem(middleware.PayoutIdempotencyTTL)).Post("/payouts", controllers.AdminProcessPayout(deps.Commissions, logg))
			r.With(idem(middleware.DefaultIdempotencyTTL)).Patch("/{commissionID}/status", controllers.AdminSetCommissionStatus(deps.Commissions, logg))
		})
		r.Get("/payments/{paymentID}", controllers.AdminGetPayment(deps.Commissions, logg))
		r.With(idem(middleware.DefaultIdempotencyTTL)).Put("/users/{userID}/sponsor", controllers.AdminReassignSponsor(deps.Sponsors, logg))
		r.Route("/settings", func(r chi.Router) {
			r.Get("/commission-rate", controllers.AdminGetCommissionRate(deps.Settings, logg))
			r.With(idem(middleware.DefaultIdempotencyTTL)).Put("/commission-rate", controllers.AdminSetCommissionRate(deps.Settings, logg))
		})
	})

	return r
}

func readinessDeps(deps Dependencies) map[string]controllers.Pinger {
	out := map[string]controllers.Pinger{}
	if deps.DB != nil {
		out["db"] = deps.DB
	}
	if deps.Redis != nil {
		out["redis"] = deps.Redis
	}
	return out
}
