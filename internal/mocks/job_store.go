package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// MemoryJobStore implements store.JobStore on a MemoryDB.
type MemoryJobStore struct {
	db *MemoryDB

	GetByIDFn         func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	SetTotalBatchesFn func(ctx context.Context, id uuid.UUID, totalBatches int) error
}

// Ensure MemoryJobStore implements store.JobStore interface
var _ store.JobStore = (*MemoryJobStore)(nil)

// Create implements store.JobStore.Create
func (m *MemoryJobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.db.users[job.AuthorID]; !ok {
		return fmt.Errorf("%w: user with ID %s not found", store.ErrInvalidEntity, job.AuthorID)
	}
	if _, exists := m.db.jobs[job.ID]; exists {
		return store.ErrDuplicate
	}
	m.db.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetByID implements store.JobStore.GetByID
func (m *MemoryJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	j, ok := m.db.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return cloneJob(j), nil
}

// SetTotalBatches implements store.JobStore.SetTotalBatches
func (m *MemoryJobStore) SetTotalBatches(ctx context.Context, id uuid.UUID, totalBatches int) error {
	if m.SetTotalBatchesFn != nil {
		return m.SetTotalBatchesFn(ctx, id, totalBatches)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	j, ok := m.db.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if j.TotalBatches != 0 {
		return fmt.Errorf("%w: job %s already has batches", store.ErrUpdateFailed, id)
	}
	j.TotalBatches = totalBatches
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// WithTx implements store.JobStore.WithTx. In-memory stores ignore tx.
func (m *MemoryJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return m
}
