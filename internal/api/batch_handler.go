package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/labelhive-api/internal/api/shared"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/service"
)

// BatchHandler serves batch allocation and the claim lifecycle.
type BatchHandler struct {
	batches *service.BatchService
	logger  *slog.Logger
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batches *service.BatchService, log *slog.Logger) *BatchHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BatchHandler{
		batches: batches,
		logger:  log.With(slog.String("component", "batch_handler")),
	}
}

// Available handles GET /api/jobs/{id}/batches/available.
func (h *BatchHandler) Available(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	batches, err := h.batches.AvailableBatches(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, batchesToResponse(batches))
}

// Next handles GET /api/jobs/{id}/batches/next. It answers 204 when the
// caller has nothing left to claim.
func (h *BatchHandler) Next(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	batch, err := h.batches.AllocateNextBatch(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if batch == nil {
		log.Debug("no batch available", slog.String("user_id", userID.String()))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, batchToResponse(batch))
}

// Claim handles POST /api/batches/{id}/claim.
func (h *BatchHandler) Claim(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	batch, err := h.batches.ClaimBatch(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, batchToResponse(batch))
}

// Unclaim handles DELETE /api/batches/{id}/claim. The caller's labels on the
// batch are removed with the claim.
func (h *BatchHandler) Unclaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.batches.UnclaimBatch(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /api/batches/{id}/complete.
func (h *BatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	batch, err := h.batches.CompleteBatch(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, batchToResponse(batch))
}

// Items handles GET /api/batches/{id}/items.
func (h *BatchHandler) Items(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	items, err := h.batches.GetBatchItems(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, itemsToResponse(items, userID))
}
