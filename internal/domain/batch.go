package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Batch-specific validation errors
var (
	ErrBatchIDEmpty     = errors.New("batch ID cannot be empty")
	ErrBatchJobIDEmpty  = errors.New("batch job ID cannot be empty")
	ErrBatchNumber      = errors.New("batch number cannot be negative")
	ErrDuplicateClaim   = errors.New("batch holds more than one claim for a user")
	ErrClaimUserIDEmpty = errors.New("claim user ID cannot be empty")
	ErrClaimNoExpiry    = errors.New("pending claim must carry an expiry")
)

// Claim is a labeller's hold on a batch. Pending claims carry an expiry;
// completed claims are exempt from expiry.
type Claim struct {
	UserID    uuid.UUID  `json:"user_id"`
	Completed bool       `json:"completed"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewClaim creates a pending claim that expires at expiresAt.
func NewClaim(userID uuid.UUID, expiresAt time.Time) Claim {
	exp := expiresAt.UTC()
	return Claim{
		UserID:    userID,
		ExpiresAt: &exp,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks if the Claim has valid data.
func (c Claim) Validate() error {
	if c.UserID == uuid.Nil {
		return ErrClaimUserIDEmpty
	}
	if !c.Completed && c.ExpiresAt == nil {
		return ErrClaimNoExpiry
	}
	return nil
}

// IsExpired reports whether a pending claim has reached its expiry at now.
// Completed claims never expire.
func (c Claim) IsExpired(now time.Time) bool {
	if c.Completed || c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.After(now)
}

// Batch is one partition of a job's items, identified by (JobID, BatchNumber).
type Batch struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	BatchNumber int       `json:"batch_number"`
	Claims      []Claim   `json:"claims"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewBatch creates an unclaimed batch for jobID.
func NewBatch(jobID uuid.UUID, batchNumber int) (*Batch, error) {
	batch := &Batch{
		ID:          uuid.New(),
		JobID:       jobID,
		BatchNumber: batchNumber,
		Claims:      []Claim{},
		CreatedAt:   time.Now().UTC(),
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}

	return batch, nil
}

// Validate checks if the Batch has valid data, including claim uniqueness.
func (b *Batch) Validate() error {
	if b.ID == uuid.Nil {
		return ErrBatchIDEmpty
	}
	if b.JobID == uuid.Nil {
		return ErrBatchJobIDEmpty
	}
	if b.BatchNumber < 0 {
		return ErrBatchNumber
	}

	seen := make(map[uuid.UUID]struct{}, len(b.Claims))
	for _, c := range b.Claims {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := seen[c.UserID]; dup {
			return ErrDuplicateClaim
		}
		seen[c.UserID] = struct{}{}
	}
	return nil
}

// ClaimFor returns the claim held by userID, if any.
func (b *Batch) ClaimFor(userID uuid.UUID) (*Claim, bool) {
	for i := range b.Claims {
		if b.Claims[i].UserID == userID {
			return &b.Claims[i], true
		}
	}
	return nil, false
}

// HasClaim reports whether userID holds any claim, completed or not.
func (b *Batch) HasClaim(userID uuid.UUID) bool {
	_, ok := b.ClaimFor(userID)
	return ok
}

// CompletedCount returns the number of completed claims.
func (b *Batch) CompletedCount() int {
	n := 0
	for _, c := range b.Claims {
		if c.Completed {
			n++
		}
	}
	return n
}
