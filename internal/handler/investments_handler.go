package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shaylevin89/follow-the-money/internal/domain"
	"github.com/shaylevin89/follow-the-money/internal/service"
)

// listInvestmentsHandler handles GET /v1/investments?sort=...
func listInvestmentsHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/investments")
		defer span.End()

		views, err := portfolio.ListInvestments(ctx, r.URL.Query().Get("sort"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"investments": views})
	}
}

// getInvestmentHandler handles GET /v1/investments/{id}.
func getInvestmentHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/investments/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("investment.id", id))

		view, err := portfolio.GetInvestment(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// createInvestmentHandler handles POST /v1/investments.
func createInvestmentHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/investments")
		defer span.End()

		var input domain.CreateInvestmentInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		inv, err := portfolio.CreateInvestment(ctx, input)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

// updateInvestmentHandler handles PUT /v1/investments/{id}.
func updateInvestmentHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/investments/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("investment.id", id))

		var input domain.UpdateInvestmentInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		inv, err := portfolio.UpdateInvestment(ctx, id, input)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

// deleteInvestmentHandler handles DELETE /v1/investments/{id}.
func deleteInvestmentHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/investments/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("investment.id", id))

		if err := portfolio.DeleteInvestment(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
