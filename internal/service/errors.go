package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// Service sentinel errors. Callers match them with errors.Is, or collapse
// any error into an ErrorKind with KindOf.
var (
	// ErrMalformedIdentifier indicates an identifier that is not a UUID.
	ErrMalformedIdentifier = errors.New("malformed identifier")

	// ErrInvalidState indicates an operation that is not allowed in the
	// current state of the claim, batch or job.
	ErrInvalidState = errors.New("invalid state")

	// ErrJobAlreadyPartitioned indicates a second upload into a job that
	// already has batches.
	ErrJobAlreadyPartitioned = fmt.Errorf("%w: job items already uploaded", ErrInvalidState)

	// ErrClaimCompleted indicates an unclaim attempted on a completed claim.
	ErrClaimCompleted = fmt.Errorf("%w: cannot remove from a completed batch", ErrInvalidState)

	// ErrNoActiveClaim indicates a label submission without a pending claim
	// on the item's batch.
	ErrNoActiveClaim = fmt.Errorf("%w: no active claim on the item's batch", ErrInvalidState)

	// ErrNotJobAuthor indicates a job mutation by someone other than its author.
	ErrNotJobAuthor = fmt.Errorf("%w: only the job author may do this", domain.ErrUnauthorized)

	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)

	// ErrLabelNotInJob indicates a label value outside the job's label set.
	ErrLabelNotInJob = fmt.Errorf("%w: not in the job's label set", domain.ErrInvalidLabel)

	// ErrLabelCleanupFailed indicates that deleting a user's labels failed
	// during unclaim or expiry. The claim was left in place.
	ErrLabelCleanupFailed = errors.New("label cleanup failed")

	// ErrClaimRemovalFailed indicates that labels were deleted but removing
	// the claim failed. The enclosing transaction was rolled back.
	ErrClaimRemovalFailed = errors.New("claim removal failed")
)

// ErrorKind classifies an error returned by a service operation.
type ErrorKind string

// Error kinds.
const (
	KindNone                ErrorKind = ""
	KindNotFound            ErrorKind = "not_found"
	KindMalformedIdentifier ErrorKind = "malformed_identifier"
	KindCapacityExceeded    ErrorKind = "capacity_exceeded"
	KindAlreadyClaimed      ErrorKind = "already_claimed"
	KindInvalidState        ErrorKind = "invalid_state"
	KindValidation          ErrorKind = "validation_error"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindStoreFailure        ErrorKind = "store_failure"
)

// KindOf maps err to its ErrorKind. Anything unrecognized is a store failure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrMalformedIdentifier), errors.Is(err, domain.ErrInvalidID):
		return KindMalformedIdentifier
	case errors.Is(err, ErrLabelCleanupFailed), errors.Is(err, ErrClaimRemovalFailed):
		return KindStoreFailure
	case errors.Is(err, store.ErrCapacityExceeded):
		return KindCapacityExceeded
	case errors.Is(err, store.ErrAlreadyClaimed):
		return KindAlreadyClaimed
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, store.ErrClaimAlreadyCompleted),
		errors.Is(err, store.ErrDuplicate):
		return KindInvalidState
	case store.IsNotFoundError(err):
		return KindNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidLabel),
		errors.Is(err, store.ErrInvalidEntity),
		errors.As(err, &validationErrs):
		return KindValidation
	default:
		return KindStoreFailure
	}
}

// BatchServiceError carries the failing operation alongside the cause.
type BatchServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for BatchServiceError.
func (e *BatchServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("batch service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("batch service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *BatchServiceError) Unwrap() error {
	return e.Err
}

// NewBatchServiceError creates a new BatchServiceError.
func NewBatchServiceError(operation, message string, err error) *BatchServiceError {
	return &BatchServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// invalidInput wraps a domain or input validation failure so KindOf reports
// it as a validation error.
func invalidInput(err error) error {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInvalidLabel) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrValidation, err)
}
