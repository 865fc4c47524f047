package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/mocks"
	"github.com/phrazzld/labelhive-api/internal/service"
	"github.com/phrazzld/labelhive-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	user, err := env.users.Register(ctx, "  Ada@Example.com ", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Empty(t, user.Password)
	assert.NotEmpty(t, user.HashedPassword)

	_, err = env.users.Register(ctx, "ada@example.com", "another-password-1")
	assert.ErrorIs(t, err, store.ErrEmailExists)

	_, err = env.users.Register(ctx, "not-an-email", "correct-horse-battery")
	assert.Equal(t, service.KindValidation, service.KindOf(err))

	_, err = env.users.Register(ctx, "short@example.com", "short")
	assert.Equal(t, service.KindValidation, service.KindOf(err))

	got, err := env.users.Authenticate(ctx, "ada@example.com", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = env.users.Authenticate(ctx, "ada@example.com", "wrong-password-123")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = env.users.Authenticate(ctx, "nobody@example.com", "correct-horse-battery")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	fetched, err := env.users.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, fetched.Email)

	_, err = env.users.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestUserService_AuthenticateUsesVerifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	stores := mocks.NewMemoryStores()
	verifier := &mocks.MockPasswordVerifier{ShouldSucceed: true}
	svc := service.NewUserService(stores.Users, verifier, nil)

	_, err := svc.Register(ctx, "grace@example.com", "a-long-enough-password")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "grace@example.com", "anything")
	require.NoError(t, err)
	assert.Equal(t, 1, verifier.CompareCallCount)
	assert.Equal(t, "anything", verifier.CompareCalledWith.Password)
}

func TestJobService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t)

	job, err := env.jobs.CreateJob(ctx, service.CreateJobInput{
		AuthorID:             author,
		Title:                "  potholes ",
		Labels:               []string{"pothole", "crack"},
		NumLabellersRequired: 3,
		Reward:               10,
	})
	require.NoError(t, err)
	assert.Equal(t, "potholes", job.Title)
	assert.Zero(t, job.TotalBatches)

	got, err := env.jobs.GetJob(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, job.Labels, got.Labels)

	tests := []struct {
		name string
		in   service.CreateJobInput
		kind service.ErrorKind
	}{
		{"no labellers", service.CreateJobInput{AuthorID: author, Title: "t", NumLabellersRequired: 0}, service.KindValidation},
		{"negative reward", service.CreateJobInput{AuthorID: author, Title: "t", NumLabellersRequired: 1, Reward: -1}, service.KindValidation},
		{"duplicate labels", service.CreateJobInput{
			AuthorID: author, Title: "t", NumLabellersRequired: 1, Labels: []string{"a", "a"},
		}, service.KindValidation},
		{"unknown author", service.CreateJobInput{AuthorID: uuid.New(), Title: "t", NumLabellersRequired: 1}, service.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.jobs.CreateJob(ctx, tt.in)
			assert.Equal(t, tt.kind, service.KindOf(err), "err: %v", err)
		})
	}

	_, err = env.jobs.GetJob(ctx, "x")
	assert.Equal(t, service.KindMalformedIdentifier, service.KindOf(err))
}
