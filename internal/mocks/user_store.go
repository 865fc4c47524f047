package mocks

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// MemoryUserStore implements store.UserStore on a MemoryDB. Plaintext
// passwords are hashed at bcrypt.MinCost.
type MemoryUserStore struct {
	db *MemoryDB

	CreateFn                   func(ctx context.Context, user *domain.User) error
	GetByIDFn                  func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	IncrementRewardAndRatingFn func(ctx context.Context, id uuid.UUID, rewardDelta int64, ratingDelta float64) error
}

// Ensure MemoryUserStore implements store.UserStore interface
var _ store.UserStore = (*MemoryUserStore)(nil)

// Create implements store.UserStore.Create
func (m *MemoryUserStore) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := user.Validate(); err != nil {
		return err
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	for _, existing := range m.db.users {
		if existing.Email == user.Email {
			return store.ErrEmailExists
		}
	}

	if user.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.MinCost)
		if err != nil {
			return err
		}
		user.HashedPassword = string(hash)
		user.Password = ""
	}
	m.db.users[user.ID] = cloneUser(user)
	return nil
}

// GetByID implements store.UserStore.GetByID
func (m *MemoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	u, ok := m.db.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// GetByEmail implements store.UserStore.GetByEmail
func (m *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.db.users {
		if u.Email == normalized {
			return cloneUser(u), nil
		}
	}
	return nil, store.ErrUserNotFound
}

// IncrementRewardAndRating implements store.UserStore.IncrementRewardAndRating
func (m *MemoryUserStore) IncrementRewardAndRating(
	ctx context.Context,
	id uuid.UUID,
	rewardDelta int64,
	ratingDelta float64,
) error {
	if m.IncrementRewardAndRatingFn != nil {
		return m.IncrementRewardAndRatingFn(ctx, id, rewardDelta, ratingDelta)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	u, ok := m.db.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.RewardCount += rewardDelta
	u.RatingSum += ratingDelta
	u.CompletedCount++
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// WithTx implements store.UserStore.WithTx. In-memory stores ignore tx.
func (m *MemoryUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return m
}
