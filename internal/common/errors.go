package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden access")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("resource conflict") // e.g., developer already submitted
	ErrInternalServer = errors.New("internal server error")
	ErrValidation     = errors.New("validation failed")
	ErrQuotaExceeded  = errors.New("monthly limit reached")
	ErrStateConflict  = errors.New("action not allowed in the current state")
	ErrRateLimited    = errors.New("too many requests")

	ErrPossibleDuplicate = errors.New("a similar problem may already exist")
	ErrInvalidID         = fmt.Errorf("invalid id format: %w", ErrBadRequest)
	ErrSubmissionLimit   = fmt.Errorf("submission limit reached for this problem: %w", ErrStateConflict)
	ErrLockNotAcquired   = errors.New("failed to acquire lock")
)

const pgUniqueViolation = "23505"

// DuplicateProblemError is returned by problem creation when the title heuristic
// finds a problem in the same category. The caller may confirm and retry.
type DuplicateProblemError struct {
	ExistingProblemID string
}

func (e *DuplicateProblemError) Error() string {
	return ErrPossibleDuplicate.Error()
}

func (e *DuplicateProblemError) Unwrap() error { return ErrPossibleDuplicate }

// ValidationError carries one message per violated field rule.
type ValidationError struct {
	Details []string
}

func NewValidationError(details ...string) *ValidationError {
	return &ValidationError{Details: details}
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Details, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrQuotaExceeded) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrStateConflict) || errors.Is(err, ErrPossibleDuplicate) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrLockNotAcquired) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrRateLimited) {
		return http.StatusTooManyRequests
	}
	if IsUniqueViolation(err) {
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

// ErrorCode gives clients a stable machine-readable code next to the message.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQuotaExceeded):
		return "LIMIT_REACHED"
	case errors.Is(err, ErrPossibleDuplicate):
		return "POSSIBLE_DUPLICATE"
	case errors.Is(err, ErrSubmissionLimit):
		return "SUBMISSION_LIMIT"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrInvalidID):
		return "INVALID_ID"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrStateConflict):
		return "STATE_CONFLICT"
	case errors.Is(err, ErrConflict), IsUniqueViolation(err):
		return "CONFLICT"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrBadRequest):
		return "BAD_REQUEST"
	default:
		return "INTERNAL"
	}
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
