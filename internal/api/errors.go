package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/labelhive-api/internal/api/shared"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/service"
	"github.com/phrazzld/labelhive-api/internal/service/auth"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// MapErrorToStatusCode maps an error to the HTTP status it is reported with.
// Token errors are checked first; everything else goes through
// service.KindOf so handlers and services agree on classification.
func MapErrorToStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if isTokenError(err) {
		return http.StatusUnauthorized
	}

	switch service.KindOf(err) {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindMalformedIdentifier, service.KindValidation:
		return http.StatusBadRequest
	case service.KindCapacityExceeded, service.KindAlreadyClaimed, service.KindInvalidState:
		return http.StatusConflict
	case service.KindUnauthorized:
		if errors.Is(err, service.ErrInvalidCredentials) {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func isTokenError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrExpiredToken) ||
		errors.Is(err, auth.ErrTokenNotYetValid) ||
		errors.Is(err, auth.ErrMissingToken) ||
		errors.Is(err, auth.ErrWrongTokenType)
}

// GetSafeErrorMessage returns a client-facing message for err that carries
// no internal detail.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case isTokenError(err):
		return "Invalid token"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, store.ErrBatchNotFound):
		return "Batch not found"
	case errors.Is(err, store.ErrItemNotFound):
		return "Item not found"
	case errors.Is(err, store.ErrClaimNotFound):
		return "Claim not found"

	case errors.Is(err, service.ErrLabelCleanupFailed):
		return "Failed to remove submitted labels"
	case errors.Is(err, service.ErrClaimRemovalFailed):
		return "Failed to remove claim"

	case errors.Is(err, store.ErrCapacityExceeded):
		return "Batch has no free claim slots"
	case errors.Is(err, store.ErrAlreadyClaimed):
		return "Batch already claimed by this user"
	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"
	case errors.Is(err, service.ErrJobAlreadyPartitioned):
		return "Job items were already uploaded"
	case errors.Is(err, service.ErrClaimCompleted), errors.Is(err, store.ErrClaimAlreadyCompleted):
		return "Claim is already completed"
	case errors.Is(err, service.ErrNoActiveClaim):
		return "No active claim on the item's batch"

	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, service.ErrNotJobAuthor):
		return "Only the job author may do this"
	case errors.Is(err, service.ErrLabelNotInJob):
		return "Label is not in the job's label set"
	}

	switch service.KindOf(err) {
	case service.KindMalformedIdentifier:
		return "Malformed identifier"
	case service.KindValidation:
		return SanitizeValidationError(err)
	case service.KindNotFound:
		return "Not found"
	case service.KindInvalidState:
		return "Operation not allowed in the current state"
	case service.KindUnauthorized:
		return "Not authorized"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator and domain validation failures
// into a short message naming the field.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}

	var domainErr *domain.ValidationError
	if errors.As(err, &domainErr) && domainErr.Field != "" {
		return fmt.Sprintf("Invalid %s: %s", domainErr.Field, domainErr.Message)
	}

	switch {
	case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrEmptyEmail):
		return "Invalid email"
	case errors.Is(err, domain.ErrPasswordTooShort), errors.Is(err, domain.ErrPasswordTooLong),
		errors.Is(err, domain.ErrEmptyPassword):
		return "Invalid password: must be 12 to 72 characters"
	case errors.Is(err, domain.ErrInvalidLabel):
		return "Invalid label value"
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	case "oneof":
		return "invalid value"
	case "uuid", "uuid4":
		return "must be a UUID"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes err as an error response. An empty message falls
// back to GetSafeErrorMessage. 5xx responses are logged with the redacted
// cause.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}

	kind := service.KindOf(err)
	if isTokenError(err) {
		kind = service.KindUnauthorized
	}
	opts := []shared.ResponseOption{shared.WithErrorKind(string(kind))}
	if status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
