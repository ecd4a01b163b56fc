package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shaylevin89/follow-the-money/internal/service"
)

// listSnapshotsHandler handles GET /v1/snapshots.
func listSnapshotsHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/snapshots")
		defer span.End()

		snapshots, err := portfolio.ListSnapshots(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
	}
}

// takeSnapshotHandler handles POST /v1/snapshots: records today's figures.
func takeSnapshotHandler(portfolio *service.Portfolio, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/snapshots")
		defer span.End()

		snapshot, err := portfolio.TakeSnapshot(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, snapshot)
	}
}
