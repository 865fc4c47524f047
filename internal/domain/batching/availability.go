package batching

import (
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
)

// IsAvailable reports whether userID may be offered batch: the user holds no
// claim on it and it is below capacity.
func IsAvailable(batch *domain.Batch, userID uuid.UUID, capacity int) bool {
	if batch == nil {
		return false
	}
	if batch.HasClaim(userID) {
		return false
	}
	return len(batch.Claims) < capacity
}

// Available filters batches down to those userID may claim, ordered by
// batch number ascending. The input slice is not modified. The result is
// empty, never nil, when nothing qualifies.
func Available(batches []*domain.Batch, userID uuid.UUID, capacity int) []*domain.Batch {
	out := make([]*domain.Batch, 0, len(batches))
	for _, b := range batches {
		if IsAvailable(b, userID, capacity) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BatchNumber < out[j].BatchNumber
	})
	return out
}

// Next returns the first available batch for userID, or nil when none is.
func Next(batches []*domain.Batch, userID uuid.UUID, capacity int) *domain.Batch {
	available := Available(batches, userID, capacity)
	if len(available) == 0 {
		return nil
	}
	return available[0]
}
