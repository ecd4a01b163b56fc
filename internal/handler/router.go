package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/shaylevin89/follow-the-money/internal/infra/observability"
	"github.com/shaylevin89/follow-the-money/internal/service"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Everything under /v1 except the login endpoint requires a bearer token.
func NewRouter(portfolio *service.Portfolio, authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(RequestCounterMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(portfolio, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", loginHandler(authSvc, logger))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			r.Get("/portfolio", getPortfolioHandler(portfolio, logger))
			r.Get("/dashboard", dashboardHandler(portfolio, logger))

			r.Get("/investments", listInvestmentsHandler(portfolio, logger))
			r.Post("/investments", createInvestmentHandler(portfolio, logger))
			r.Get("/investments/{id}", getInvestmentHandler(portfolio, logger))
			r.Put("/investments/{id}", updateInvestmentHandler(portfolio, logger))
			r.Delete("/investments/{id}", deleteInvestmentHandler(portfolio, logger))

			r.Get("/types", listTypesHandler(portfolio, logger))
			r.Post("/types", createTypeHandler(portfolio, logger))
			r.Put("/types/{name}", updateTypeHandler(portfolio, logger))
			r.Delete("/types/{name}", deleteTypeHandler(portfolio, logger))

			r.Get("/snapshots", listSnapshotsHandler(portfolio, logger))
			r.Post("/snapshots", takeSnapshotHandler(portfolio, logger))

			r.Get("/metrics/summary", metricsSummaryHandler(metrics))
		})
	})

	return r
}

type serviceHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
}

func healthzHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := []serviceHealth{
			{Name: "ftm-api", Status: "healthy"},
		}

		start := time.Now()
		status := "healthy"
		if err := portfolio.Ping(r.Context()); err != nil {
			logger.Warn("healthz: document store unreachable", zap.Error(err))
			status = "degraded"
		}
		services = append(services, serviceHealth{
			Name:      "github",
			Status:    status,
			LatencyMs: time.Since(start).Milliseconds(),
		})

		writeJSON(w, http.StatusOK, map[string]any{
			"status":   status,
			"services": services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSummaryHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Summary())
	}
}
