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

// listTypesHandler handles GET /v1/types.
func listTypesHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/types")
		defer span.End()

		types, err := portfolio.ListTypes(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"investment_types": types})
	}
}

// createTypeHandler handles POST /v1/types.
func createTypeHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/types")
		defer span.End()

		var input domain.TypeInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		entry, err := portfolio.CreateType(ctx, input)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}

// updateTypeHandler handles PUT /v1/types/{name}.
func updateTypeHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/types/{name}")
		defer span.End()

		name := chi.URLParam(r, "name")
		span.SetAttributes(attribute.String("type.name", name))

		var input domain.TypeInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		entry, err := portfolio.UpdateType(ctx, name, input)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// deleteTypeHandler handles DELETE /v1/types/{name}.
func deleteTypeHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/types/{name}")
		defer span.End()

		name := chi.URLParam(r, "name")
		span.SetAttributes(attribute.String("type.name", name))

		if err := portfolio.DeleteType(ctx, name); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
