package batching

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchWithClaims(t *testing.T, jobID uuid.UUID, number int, users ...uuid.UUID) *domain.Batch {
	t.Helper()

	b, err := domain.NewBatch(jobID, number)
	require.NoError(t, err)
	for _, u := range users {
		b.Claims = append(b.Claims, domain.NewClaim(u, time.Now().Add(time.Hour)))
	}
	return b
}

func TestAvailable(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	me := uuid.New()
	other1 := uuid.New()
	other2 := uuid.New()

	batches := []*domain.Batch{
		batchWithClaims(t, jobID, 2),
		batchWithClaims(t, jobID, 0, other1, other2),
		batchWithClaims(t, jobID, 1, me),
		batchWithClaims(t, jobID, 3, other1),
	}

	tests := []struct {
		name     string
		capacity int
		want     []int
	}{
		{name: "capacity two excludes full and own", capacity: 2, want: []int{2, 3}},
		{name: "capacity three admits batch with two claims", capacity: 3, want: []int{0, 2, 3}},
		{name: "capacity one only empty batches", capacity: 1, want: []int{2}},
		{name: "capacity zero nothing", capacity: 0, want: []int{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Available(batches, me, tt.capacity)
			numbers := make([]int, 0, len(got))
			for _, b := range got {
				numbers = append(numbers, b.BatchNumber)
			}
			assert.Equal(t, tt.want, numbers)
		})
	}
}

func TestAvailable_CompletedClaimStillExcludes(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	me := uuid.New()
	b := batchWithClaims(t, jobID, 0, me)
	b.Claims[0].Completed = true
	b.Claims[0].ExpiresAt = nil

	assert.Empty(t, Available([]*domain.Batch{b}, me, 5))
	assert.NotNil(t, Available(nil, me, 5))
}

func TestNext(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	me := uuid.New()

	batches := []*domain.Batch{
		batchWithClaims(t, jobID, 4),
		batchWithClaims(t, jobID, 1, me),
		batchWithClaims(t, jobID, 3),
	}

	next := Next(batches, me, 1)
	require.NotNil(t, next)
	assert.Equal(t, 3, next.BatchNumber)

	assert.Nil(t, Next(batches, me, 0))
}
