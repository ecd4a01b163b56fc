package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shaylevin89/follow-the-money/internal/service"
)

// getPortfolioHandler handles GET /v1/portfolio: the raw stored document.
func getPortfolioHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/portfolio")
		defer span.End()

		doc, revision, err := portfolio.GetDocument(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"document": doc,
			"revision": revision,
		})
	}
}

// dashboardHandler handles GET /v1/dashboard.
func dashboardHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		dashboard, err := portfolio.Dashboard(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dashboard)
	}
}
