package batching

import (
	"fmt"
	"time"

	"github.com/phrazzld/labelhive-api/internal/domain"
)

// Default parameter values.
const (
	DefaultBatchSize     = 10
	DefaultClaimTTL      = 60 * time.Minute
	DefaultSweepInterval = 15 * time.Minute

	// RatingPerCompletion is the rating contribution of one completed batch.
	RatingPerCompletion = 1.0
)

// Params holds the tunables of batch allocation.
type Params struct {
	// BatchSize is the target number of items per batch.
	BatchSize int

	// ClaimTTL is how long a pending claim stays valid.
	ClaimTTL time.Duration
}

// NewDefaultParams returns Params with the default batch size and claim TTL.
func NewDefaultParams() Params {
	return Params{
		BatchSize: DefaultBatchSize,
		ClaimTTL:  DefaultClaimTTL,
	}
}

// Validate checks that the params can drive a partition.
func (p Params) Validate() error {
	if p.BatchSize < 1 {
		return domain.NewValidationError(
			"batch_size",
			fmt.Sprintf("must be positive, got %d", p.BatchSize),
			domain.ErrValidation,
		)
	}
	if p.ClaimTTL <= 0 {
		return domain.NewValidationError(
			"claim_ttl",
			fmt.Sprintf("must be positive, got %s", p.ClaimTTL),
			domain.ErrValidation,
		)
	}
	return nil
}
