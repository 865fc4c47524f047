package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
)

// ItemStore defines the interface for item and label persistence.
type ItemStore interface {
	// CreateMultiple saves multiple items.
	// IMPORTANT: This method MUST be run within a transaction for atomicity.
	CreateMultiple(ctx context.Context, items []*domain.Item) error

	// GetByID retrieves an item with its submissions.
	// Returns ErrItemNotFound if the item does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)

	// FindByJobAndBatch returns the items of one batch in upload order,
	// each with its submissions ordered by first submission time.
	FindByJobAndBatch(ctx context.Context, jobID uuid.UUID, batchNumber int) ([]*domain.Item, error)

	// FindByJob returns every item of a job with its submissions.
	FindByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Item, error)

	// UpsertLabels records userID's label values on an item, replacing a
	// previous submission by the same user while keeping its original
	// creation time.
	// Returns ErrItemNotFound if the item does not exist.
	UpsertLabels(ctx context.Context, itemID, userID uuid.UUID, labels []string) error

	// DeleteLabelsByUser removes userID's submissions from every item of the
	// given batch and returns how many were removed.
	DeleteLabelsByUser(ctx context.Context, jobID uuid.UUID, batchNumber int, userID uuid.UUID) (int64, error)

	// SetAssignedLabels stores the consensus ordering on an item.
	// Returns ErrItemNotFound if the item does not exist.
	SetAssignedLabels(ctx context.Context, itemID uuid.UUID, labels []string) error

	// WithTx returns a new ItemStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ItemStore
}
