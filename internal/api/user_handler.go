package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/labelhive-api/internal/api/shared"
	"github.com/phrazzld/labelhive-api/internal/service"
)

// UserHandler serves user ratings.
type UserHandler struct {
	rating *service.RatingService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(rating *service.RatingService, log *slog.Logger) *UserHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UserHandler{
		rating: rating,
		logger: log.With(slog.String("component", "user_handler")),
	}
}

// Rating handles GET /api/users/{id}/rating. An unknown user is not an
// error; it rates -1.
func (h *UserHandler) Rating(w http.ResponseWriter, r *http.Request) {
	userID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	rating, err := h.rating.DetermineUserRating(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to determine rating")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, RatingResponse{UserID: userID, Rating: rating})
}
