package mocks

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// MemoryBatchStore implements store.BatchStore on a MemoryDB. AppendClaim
// checks and appends under the MemoryDB lock, matching the row lock the
// PostgreSQL store takes.
type MemoryBatchStore struct {
	db *MemoryDB

	AppendClaimFn       func(ctx context.Context, batchID, userID uuid.UUID, expiresAt time.Time, capacity int) (*domain.Claim, error)
	RemoveClaimFn       func(ctx context.Context, batchID, userID uuid.UUID) error
	MarkCompletedFn     func(ctx context.Context, batchID, userID uuid.UUID) error
	FindExpiredClaimsFn func(ctx context.Context, now time.Time) ([]store.ExpiredClaim, error)
}

// Ensure MemoryBatchStore implements store.BatchStore interface
var _ store.BatchStore = (*MemoryBatchStore)(nil)

// Create implements store.BatchStore.Create
func (m *MemoryBatchStore) Create(ctx context.Context, batch *domain.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	for _, b := range m.db.batches {
		if b.JobID == batch.JobID && b.BatchNumber == batch.BatchNumber {
			return store.ErrDuplicate
		}
	}
	m.db.batches[batch.ID] = cloneBatch(batch)
	return nil
}

// GetByID implements store.BatchStore.GetByID
func (m *MemoryBatchStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	b, ok := m.db.batches[id]
	if !ok {
		return nil, store.ErrBatchNotFound
	}
	return cloneBatch(b), nil
}

// FindByJob implements store.BatchStore.FindByJob
func (m *MemoryBatchStore) FindByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Batch, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	out := make([]*domain.Batch, 0)
	for _, b := range m.db.batches {
		if b.JobID == jobID {
			out = append(out, cloneBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchNumber < out[j].BatchNumber })
	return out, nil
}

// AppendClaim implements store.BatchStore.AppendClaim
func (m *MemoryBatchStore) AppendClaim(
	ctx context.Context,
	batchID, userID uuid.UUID,
	expiresAt time.Time,
	capacity int,
) (*domain.Claim, error) {
	if m.AppendClaimFn != nil {
		return m.AppendClaimFn(ctx, batchID, userID, expiresAt, capacity)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	b, ok := m.db.batches[batchID]
	if !ok {
		return nil, store.ErrBatchNotFound
	}
	if b.HasClaim(userID) {
		return nil, store.ErrAlreadyClaimed
	}
	if len(b.Claims) >= capacity {
		return nil, store.ErrCapacityExceeded
	}

	claim := domain.NewClaim(userID, expiresAt)
	b.Claims = append(b.Claims, claim)
	out := claim
	return &out, nil
}

// GetClaimForUpdate implements store.BatchStore.GetClaimForUpdate
func (m *MemoryBatchStore) GetClaimForUpdate(ctx context.Context, batchID, userID uuid.UUID) (*domain.Claim, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	b, ok := m.db.batches[batchID]
	if !ok {
		return nil, store.ErrClaimNotFound
	}
	c, ok := b.ClaimFor(userID)
	if !ok {
		return nil, store.ErrClaimNotFound
	}
	out := *c
	return &out, nil
}

// RemoveClaim implements store.BatchStore.RemoveClaim
func (m *MemoryBatchStore) RemoveClaim(ctx context.Context, batchID, userID uuid.UUID) error {
	if m.RemoveClaimFn != nil {
		return m.RemoveClaimFn(ctx, batchID, userID)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	b, ok := m.db.batches[batchID]
	if !ok {
		return store.ErrClaimNotFound
	}
	for idx, c := range b.Claims {
		if c.UserID == userID {
			b.Claims = append(b.Claims[:idx], b.Claims[idx+1:]...)
			return nil
		}
	}
	return store.ErrClaimNotFound
}

// MarkCompleted implements store.BatchStore.MarkCompleted
func (m *MemoryBatchStore) MarkCompleted(ctx context.Context, batchID, userID uuid.UUID) error {
	if m.MarkCompletedFn != nil {
		return m.MarkCompletedFn(ctx, batchID, userID)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	b, ok := m.db.batches[batchID]
	if !ok {
		return store.ErrClaimNotFound
	}
	c, ok := b.ClaimFor(userID)
	if !ok {
		return store.ErrClaimNotFound
	}
	if c.Completed {
		return store.ErrClaimAlreadyCompleted
	}
	c.Completed = true
	c.ExpiresAt = nil
	return nil
}

// FindExpiredClaims implements store.BatchStore.FindExpiredClaims
func (m *MemoryBatchStore) FindExpiredClaims(ctx context.Context, now time.Time) ([]store.ExpiredClaim, error) {
	if m.FindExpiredClaimsFn != nil {
		return m.FindExpiredClaimsFn(ctx, now)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	out := make([]store.ExpiredClaim, 0)
	for _, b := range m.db.batches {
		for _, c := range b.Claims {
			if c.IsExpired(now) {
				out = append(out, store.ExpiredClaim{
					BatchID:     b.ID,
					JobID:       b.JobID,
					BatchNumber: b.BatchNumber,
					UserID:      c.UserID,
					ExpiresAt:   *c.ExpiresAt,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// CountCompletedClaims implements store.BatchStore.CountCompletedClaims
func (m *MemoryBatchStore) CountCompletedClaims(ctx context.Context, jobID uuid.UUID) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	n := 0
	for _, b := range m.db.batches {
		if b.JobID == jobID {
			n += b.CompletedCount()
		}
	}
	return n, nil
}

// SetClaimExpiry rewrites the expiry of a pending claim. Tests use it to
// age claims without waiting.
func (m *MemoryBatchStore) SetClaimExpiry(batchID, userID uuid.UUID, expiresAt time.Time) bool {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	b, ok := m.db.batches[batchID]
	if !ok {
		return false
	}
	c, ok := b.ClaimFor(userID)
	if !ok {
		return false
	}
	exp := expiresAt.UTC()
	c.ExpiresAt = &exp
	return true
}

// WithTx implements store.BatchStore.WithTx. In-memory stores ignore tx.
func (m *MemoryBatchStore) WithTx(tx *sql.Tx) store.BatchStore {
	return m
}
