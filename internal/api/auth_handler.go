package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/api/shared"
	"github.com/phrazzld/labelhive-api/internal/config"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/service"
	"github.com/phrazzld/labelhive-api/internal/service/auth"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	users         *service.UserService
	jwtService    auth.JWTService
	tokenLifetime time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	users *service.UserService,
	jwtService auth.JWTService,
	authConfig config.AuthConfig,
	log *slog.Logger,
) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		users:         users,
		jwtService:    jwtService,
		tokenLifetime: time.Duration(authConfig.TokenLifetimeMinutes) * time.Minute,
		now:           time.Now,
		logger:        log.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user.ID)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user.ID)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, userID uuid.UUID) {
	token, err := h.jwtService.GenerateToken(r.Context(), userID)
	if err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Error("failed to generate token",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	resp := AuthResponse{UserID: userID, AccessToken: token}
	if h.tokenLifetime > 0 {
		resp.ExpiresAt = h.now().Add(h.tokenLifetime).UTC().Format(time.RFC3339)
	}
	shared.RespondWithJSON(w, r, status, resp)
}
