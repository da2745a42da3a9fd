package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConflict indicates that the resource is not in a state that permits the operation.
var ErrConflict = errors.New("resource state conflict")

// ErrForbidden indicates that the caller is not allowed to perform the operation.
var ErrForbidden = errors.New("operation not permitted")

// ErrInternal indicates an unexpected internal failure.
var ErrInternal = errors.New("internal error")

// ErrUnavailable indicates the backing store could not be reached. Operations
// failing with this error left no partial state behind and are safe to retry.
var ErrUnavailable = errors.New("storage unavailable")

// ErrInsufficientBalance indicates a redemption or adjustment would drive the
// cached balance below zero.
var ErrInsufficientBalance = errors.New("insufficient point balance")

// ErrSessionNotClosed indicates recovery was invoked for a session whose
// telemetry was never finalized. Programming-error class, not retried.
var ErrSessionNotClosed = errors.New("session telemetry is not closed")

// ErrPartialCompletion is the sentinel matched by errors.Is for
// PartialCompletionError values.
var ErrPartialCompletion = errors.New("session closed but accrual pending")

// AppError wraps an underlying error with a status code and a message safe to
// surface to callers.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError wrapping err.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewNotFoundError creates an AppError that matches ErrNotFound via errors.Is.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: 404, Message: message, Err: ErrNotFound}
}

// PartialCompletionError reports that the session-completion saga finalized
// the session's telemetry (step 1) but failed to accrue points (step 2). The
// telemetry close cannot be repeated, so callers must not retry the whole
// completion; they invoke recovery with the carried session reference instead.
// This is the one error that intentionally surfaces internal state, because
// that state is the required input to recovery.
type PartialCompletionError struct {
	SessionRef    string
	CorrelationID string
	Err           error
}

func (e *PartialCompletionError) Error() string {
	return fmt.Sprintf("session %s closed but points accrual failed: %v", e.SessionRef, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As chains.
func (e *PartialCompletionError) Unwrap() []error {
	return []error{ErrPartialCompletion, e.Err}
}
