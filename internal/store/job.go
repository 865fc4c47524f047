package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
)

// JobStore defines the interface for job data persistence.
type JobStore interface {
	// Create saves a new job.
	// Returns ErrInvalidEntity if the author does not exist.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// SetTotalBatches records the number of batches the job's items were
	// partitioned into. It only succeeds while the job has no batches yet.
	// Returns ErrJobNotFound if the job does not exist and ErrUpdateFailed
	// if its batch count was already set.
	SetTotalBatches(ctx context.Context, id uuid.UUID, totalBatches int) error

	// WithTx returns a new JobStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}
