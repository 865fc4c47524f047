package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/domain/batching"
	"github.com/phrazzld/labelhive-api/internal/mocks"
	"github.com/phrazzld/labelhive-api/internal/service"
	"github.com/phrazzld/labelhive-api/internal/service/auth"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	stores  *mocks.MemoryStores
	clock   *fakeClock
	batches *service.BatchService
	labels  *service.LabelService
	rating  *service.RatingService
	jobs    *service.JobService
	users   *service.UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	stores := mocks.NewMemoryStores()
	clock := newFakeClock()
	rating := service.NewRatingService(stores.Users, nil)

	batchSvc, err := service.NewBatchService(
		stores.Stores(),
		stores.Transactor,
		rating,
		batching.NewDefaultParams(),
		nil,
		service.WithBatchClock(clock.Now),
	)
	require.NoError(t, err)

	labelSvc, err := service.NewLabelService(stores.Stores(), stores.Transactor, nil, nil)
	require.NoError(t, err)

	return &testEnv{
		stores:  stores,
		clock:   clock,
		batches: batchSvc,
		labels:  labelSvc,
		rating:  rating,
		jobs:    service.NewJobService(stores.Jobs, nil),
		users:   service.NewUserService(stores.Users, auth.NewBcryptVerifier(), nil),
	}
}

func (e *testEnv) user(t *testing.T) uuid.UUID {
	t.Helper()
	u, err := domain.NewUser(fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8]), "password-123456")
	require.NoError(t, err)
	require.NoError(t, e.stores.Users.Create(context.Background(), u))
	return u.ID
}

func (e *testEnv) job(t *testing.T, author uuid.UUID, labellers int, reward int64, labels ...string) *domain.Job {
	t.Helper()
	job, err := e.jobs.CreateJob(context.Background(), service.CreateJobInput{
		AuthorID:             author,
		Title:                "street signs",
		Labels:               labels,
		NumLabellersRequired: labellers,
		Reward:               reward,
	})
	require.NoError(t, err)
	return job
}

func (e *testEnv) upload(t *testing.T, job *domain.Job, n int) *service.UploadResult {
	t.Helper()
	files := make([]string, n)
	for i := range files {
		files[i] = fmt.Sprintf("img-%03d.jpg", i)
	}
	res, err := e.batches.UploadItems(context.Background(), service.UploadItemsInput{
		JobID:     job.ID.String(),
		UserID:    job.AuthorID,
		FileNames: files,
	})
	require.NoError(t, err)
	return res
}
