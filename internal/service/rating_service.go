package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain/batching"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// RatingService credits completions to users and reports their rating.
type RatingService struct {
	users  store.UserStore
	logger *slog.Logger
}

// NewRatingService creates a RatingService reading from users.
func NewRatingService(users store.UserStore, logger *slog.Logger) *RatingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RatingService{
		users:  users,
		logger: logger.With(slog.String("component", "rating_service")),
	}
}

// RecordCompletion adds reward to the user's reward count and one rating
// unit to their rating sum. users is the store to write through, normally
// bound to the caller's transaction; nil means the service's own store.
func (s *RatingService) RecordCompletion(
	ctx context.Context,
	users store.UserStore,
	userID uuid.UUID,
	reward int64,
) error {
	if users == nil {
		users = s.users
	}
	if err := users.IncrementRewardAndRating(ctx, userID, reward, batching.RatingPerCompletion); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to credit completion",
			slog.String("user_id", userID.String()),
			slog.Int64("reward", reward),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// DetermineUserRating returns the user's rating sum divided by their
// completed batch count, 0 when nothing is completed yet, and
// batching.InvalidRating when the user does not exist.
func (s *RatingService) DetermineUserRating(ctx context.Context, userID uuid.UUID) (float64, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return batching.InvalidRating, nil
		}
		return batching.InvalidRating, err
	}
	return batching.Rating(user.RatingSum, user.CompletedCount), nil
}
