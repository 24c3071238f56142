package api

import (
	"net/http"

	"github.com/abkawan/peachtree-bank/internal/config"
	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/metrics"
	"github.com/abkawan/peachtree-bank/internal/ratelimit"
	"github.com/abkawan/peachtree-bank/internal/service"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies is everything the HTTP layer needs. Audit, Limiter and Gatherer are optional.
type Dependencies struct {
	Accounts     *service.AccountService
	Transactions *service.TransactionService
	Search       *service.SearchService
	Audit        *service.AuditService
	Store        Pinger
	Limiter      *ratelimit.Limiter
	RateLimit    config.RateLimitConfig
	Metrics      metrics.Recorder
	Gatherer     prometheus.Gatherer
	CORSOrigins  []string
	Logger       *logging.Logger
}

// sets up the API routes
func SetupRoutes(r *mux.Router, deps Dependencies) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOpRecorder{}
	}
	h := NewHandler(deps)

	r.NotFoundHandler = http.HandlerFunc(h.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)
	r.Use(metricsMiddleware(deps.Metrics))

	r.HandleFunc("/", h.Index).Methods(http.MethodGet)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if deps.Limiter != nil && deps.RateLimit.Enabled {
		r.Use(rateLimitMiddleware(deps.Limiter, deps.RateLimit, deps.Metrics, h))
	}

	// Health check (check if API is working)
	r.HandleFunc("/api/health", h.HealthCheck).Methods(http.MethodGet)

	// Account routes
	r.HandleFunc("/api/accounts", h.ListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{id}", h.GetAccount).Methods(http.MethodGet)

	// Transaction routes
	r.HandleFunc("/api/transactions", h.ListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/api/transactions", h.CreateTransaction).Methods(http.MethodPost)
	r.HandleFunc("/api/transactions/{id}", h.GetTransaction).Methods(http.MethodGet)
	r.HandleFunc("/api/transactions/{id}", h.UpdateTransaction).Methods(http.MethodPatch)
	if deps.Audit != nil {
		r.HandleFunc("/api/transactions/{id}/events", h.TransactionEvents).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/search", h.Search).Methods(http.MethodGet)
}

// NewRouter builds the complete HTTP handler with CORS, request ids, logging and recovery.
func NewRouter(deps Dependencies) http.Handler {
	r := mux.NewRouter()
	SetupRoutes(r, deps)

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		handlers.ExposedHeaders([]string{"X-Request-ID", "Retry-After"}),
	)

	logger := deps.Logger.Named("http")
	return requestID(recoverer(logger, loggingMiddleware(logger, cors(r))))
}
