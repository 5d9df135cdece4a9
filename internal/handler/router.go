package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/infra/observability"
	"github.com/finbook/finbook/internal/port"
	"github.com/finbook/finbook/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles the service-layer collaborators the router dispatches to.
type Services struct {
	Ledger        *service.Ledger
	Accounts      *service.Accounts
	Catalog       *service.Catalog
	Subscriptions *service.Subscriptions
}

// NewRouter creates the HTTP router with all routes and middleware. Everything
// under /v1 except the metrics snapshot requires a valid bearer token.
func NewRouter(svcs Services, store port.Store, metrics *observability.Metrics, jwtSecret string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(jwtSecret, logger))

			// Ledger engine
			r.Post("/transactions", createTransactionHandler(svcs.Ledger, logger))
			r.Get("/transactions", listTransactionsHandler(svcs.Ledger, logger))
			r.Get("/transactions/{transactionId}", getTransactionHandler(svcs.Ledger, logger))
			r.Put("/transactions/{transactionId}", updateTransactionHandler(svcs.Ledger, logger))
			r.Delete("/transactions/{transactionId}", deleteTransactionHandler(svcs.Ledger, logger))

			// Accounts
			r.Post("/accounts", createAccountHandler(svcs.Accounts, logger))
			r.Get("/accounts", listAccountsHandler(svcs.Accounts, logger))
			r.Get("/accounts/{accountId}", getAccountHandler(svcs.Accounts, logger))
			r.Get("/accounts/{accountId}/balance", getBalanceHandler(svcs.Accounts, logger))

			// Catalog
			r.Post("/categories", createCategoryHandler(svcs.Catalog, logger))
			r.Get("/categories", listCategoriesHandler(svcs.Catalog, logger))
			r.Delete("/categories/{categoryId}", deleteCategoryHandler(svcs.Catalog, logger))

			r.Post("/payees", createPayeeHandler(svcs.Catalog, logger))
			r.Get("/payees", listPayeesHandler(svcs.Catalog, logger))
			r.Delete("/payees/{payeeId}", deletePayeeHandler(svcs.Catalog, logger))

			r.Post("/tags", createTagHandler(svcs.Catalog, logger))
			r.Get("/tags", listTagsHandler(svcs.Catalog, logger))
			r.Delete("/tags/{tagId}", deleteTagHandler(svcs.Catalog, logger))

			// Subscriptions
			r.Post("/subscriptions", createSubscriptionHandler(svcs.Subscriptions, logger))
			r.Get("/subscriptions", listSubscriptionsHandler(svcs.Subscriptions, logger))
			r.Delete("/subscriptions/{subscriptionId}", deleteSubscriptionHandler(svcs.Subscriptions, logger))
		})
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(store port.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		storageStatus := "healthy"
		start := time.Now()
		_, err := store.GetAccount(r.Context(), "health-check")
		var notFound *domain.ErrNotFound
		if err != nil && !errors.As(err, &notFound) {
			storageStatus = "degraded"
		}
		latency := time.Since(start).Milliseconds()

		overall := "healthy"
		if storageStatus != "healthy" {
			overall = "degraded"
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status": overall,
			"services": []map[string]any{
				{"name": "finbook-api", "status": "healthy", "latency_ms": 0, "last_checked": now},
				{"name": "storage", "status": storageStatus, "latency_ms": latency, "last_checked": now},
			},
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}
