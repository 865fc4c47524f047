package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/api/shared"
	"github.com/phrazzld/labelhive-api/internal/service"
)

// LabelHandler serves label submission.
type LabelHandler struct {
	labels *service.LabelService
	logger *slog.Logger
}

// NewLabelHandler creates a new LabelHandler.
func NewLabelHandler(labels *service.LabelService, log *slog.Logger) *LabelHandler {
	if log == nil {
		log = slog.Default()
	}
	return &LabelHandler{
		labels: labels,
		logger: log.With(slog.String("component", "label_handler")),
	}
}

// Submit handles PUT /api/items/{id}/labels. A resubmission replaces the
// caller's earlier labels on the item.
func (h *LabelHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req SubmitLabelsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rawID := chi.URLParam(r, "id")
	stored, err := h.labels.SubmitLabels(r.Context(), service.SubmitLabelsInput{
		ItemID: rawID,
		UserID: userID,
		Labels: req.Labels,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// The service already rejected malformed IDs.
	itemID, _ := uuid.Parse(rawID)
	shared.RespondWithJSON(w, r, http.StatusOK, LabelsResponse{ItemID: itemID, Labels: stored})
}
