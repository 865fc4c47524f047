package service_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/service"
	"github.com/phrazzld/labelhive-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	type input struct {
		Name string `validate:"required"`
	}
	validationErr := validator.New().Struct(input{})

	tests := []struct {
		name string
		err  error
		want service.ErrorKind
	}{
		{"nil", nil, service.KindNone},
		{"malformed", service.ErrMalformedIdentifier, service.KindMalformedIdentifier},
		{"not found", store.ErrBatchNotFound, service.KindNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", store.ErrJobNotFound), service.KindNotFound},
		{"capacity", store.ErrCapacityExceeded, service.KindCapacityExceeded},
		{"already claimed", store.ErrAlreadyClaimed, service.KindAlreadyClaimed},
		{"completed twice", store.ErrClaimAlreadyCompleted, service.KindInvalidState},
		{"unclaim completed", service.ErrClaimCompleted, service.KindInvalidState},
		{"email exists", store.ErrEmailExists, service.KindInvalidState},
		{"domain validation", domain.NewValidationError("labels", "cannot be empty", domain.ErrInvalidLabel), service.KindValidation},
		{"validator", validationErr, service.KindValidation},
		{"invalid entity", store.ErrInvalidEntity, service.KindValidation},
		{"unauthorized", service.ErrNotJobAuthor, service.KindUnauthorized},
		{"credentials", service.ErrInvalidCredentials, service.KindUnauthorized},
		{"cleanup beats not found", fmt.Errorf("%w: %w", service.ErrLabelCleanupFailed, store.ErrItemNotFound), service.KindStoreFailure},
		{"unknown", errors.New("boom"), service.KindStoreFailure},
		{
			"service error",
			service.NewBatchServiceError("claim_batch", "failed", store.ErrCapacityExceeded),
			service.KindCapacityExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, service.KindOf(tt.err))
		})
	}
}

func TestBatchServiceError(t *testing.T) {
	t.Parallel()

	err := service.NewBatchServiceError("claim_batch", "failed to claim batch", store.ErrAlreadyClaimed)
	assert.Contains(t, err.Error(), "claim_batch")
	assert.ErrorIs(t, err, store.ErrAlreadyClaimed)

	var target *service.BatchServiceError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &target))
	assert.Equal(t, "claim_batch", target.Operation)

	bare := service.NewBatchServiceError("sweep", "interrupted", nil)
	assert.Equal(t, "batch service sweep failed: interrupted", bare.Error())
}
