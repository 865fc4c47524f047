package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
)

// ExpiredClaim identifies a pending claim whose expiry has passed.
type ExpiredClaim struct {
	BatchID     uuid.UUID
	JobID       uuid.UUID
	BatchNumber int
	UserID      uuid.UUID
	ExpiresAt   time.Time
}

// BatchStore defines the interface for batch and claim persistence.
type BatchStore interface {
	// Create saves a new batch.
	// Returns ErrDuplicate if the job already has a batch with that number.
	Create(ctx context.Context, batch *domain.Batch) error

	// GetByID retrieves a batch with its claims.
	// Returns ErrBatchNotFound if the batch does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error)

	// FindByJob returns a job's batches ordered by batch number, claims loaded.
	FindByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Batch, error)

	// AppendClaim adds a pending claim for userID that expires at expiresAt.
	// The existence check, the capacity check and the insert are atomic with
	// respect to other claims on the same batch.
	// Returns ErrBatchNotFound, ErrAlreadyClaimed or ErrCapacityExceeded.
	AppendClaim(ctx context.Context, batchID, userID uuid.UUID, expiresAt time.Time, capacity int) (*domain.Claim, error)

	// GetClaimForUpdate returns userID's claim on the batch, locking it for
	// the rest of the enclosing transaction where supported.
	// Returns ErrClaimNotFound if the user holds no claim.
	GetClaimForUpdate(ctx context.Context, batchID, userID uuid.UUID) (*domain.Claim, error)

	// RemoveClaim deletes userID's claim on the batch.
	// Returns ErrClaimNotFound if the user holds no claim.
	RemoveClaim(ctx context.Context, batchID, userID uuid.UUID) error

	// MarkCompleted marks userID's pending claim completed and clears its expiry.
	// Returns ErrClaimNotFound or ErrClaimAlreadyCompleted.
	MarkCompleted(ctx context.Context, batchID, userID uuid.UUID) error

	// FindExpiredClaims lists pending claims whose expiry is at or before now.
	FindExpiredClaims(ctx context.Context, now time.Time) ([]ExpiredClaim, error)

	// CountCompletedClaims counts completed claims over all of a job's batches.
	CountCompletedClaims(ctx context.Context, jobID uuid.UUID) (int, error)

	// WithTx returns a new BatchStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) BatchStore
}
