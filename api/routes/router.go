package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agmlabs/storebuilder-backend/api/controllers"
	webhookcontrollers "github.com/agmlabs/storebuilder-backend/api/controllers/webhooks"
	"github.com/agmlabs/storebuilder-backend/api/middleware"
	"github.com/agmlabs/storebuilder-backend/internal/auth"
	"github.com/agmlabs/storebuilder-backend/internal/orders"
	"github.com/agmlabs/storebuilder-backend/internal/payments"
	"github.com/agmlabs/storebuilder-backend/internal/payouts"
	"github.com/agmlabs/storebuilder-backend/pkg/config"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/monnify"
	"github.com/agmlabs/storebuilder-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            pinger
	Redis         *redis.Client
	Tokens        *auth.TokenIssuer
	AuthService   auth.Service
	OrderService  orders.Service
	Reconciler    payments.Reconciler
	PayoutService payouts.Service
	Monnify       *monnify.Client
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public storefront surface.
		r.Post("/stores/{username}/orders", controllers.PlaceOrder(deps.OrderService, logg))
		r.Get("/orders/track/{orderNumber}", controllers.TrackOrder(deps.OrderService, logg))
		r.Get("/payments/verify/{reference}", controllers.VerifyPayment(deps.Reconciler, logg))

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/monnify", webhookcontrollers.MonnifyWebhook(deps.Reconciler, deps.Monnify, logg))
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		})

		// Seller dashboard surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Tokens, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.OrderService, logg))
				r.Get("/stats", controllers.OrderStats(deps.OrderService, logg))
				r.Get("/{orderId}", controllers.OrderDetail(deps.OrderService, logg))
				r.Patch("/{orderId}/status", controllers.UpdateOrderStatus(deps.OrderService, logg))
				r.Post("/{orderId}/payment", controllers.RetryOrderPayment(deps.OrderService, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/banks", controllers.ListBanks(deps.PayoutService, logg))
				r.Post("/banks/verify", controllers.VerifyBankAccountLookup(deps.PayoutService, logg))
				r.Route("/bank-accounts", func(r chi.Router) {
					r.Get("/", controllers.ListBankAccounts(deps.PayoutService, logg))
					r.Post("/", controllers.AddBankAccount(deps.PayoutService, logg))
				})
			})

			r.Post("/payouts", controllers.InitiatePayout(deps.PayoutService, logg))
		})
	})

	return r
}
