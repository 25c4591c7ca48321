package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Beautify error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"       // 400
	ErrInvalidParameter    ErrorCode = "INVALID_PARAMETER"     // 400
	ErrUnknownEffect       ErrorCode = "UNKNOWN_EFFECT"        // 404
	ErrUnknownCategory     ErrorCode = "UNKNOWN_CATEGORY"      // 404
	ErrNotFound            ErrorCode = "NOT_FOUND"             // 404
	ErrInvalidState        ErrorCode = "INVALID_STATE"         // 409
	ErrTooManySessions     ErrorCode = "TOO_MANY_SESSIONS"     // 429
	ErrCancelled           ErrorCode = "CANCELLED"             // 499
	ErrInternal            ErrorCode = "INTERNAL"              // 500
	ErrCommitFailed        ErrorCode = "COMMIT_FAILED"         // 500
	ErrHostOperationFailed ErrorCode = "HOST_OPERATION_FAILED" // 502
)

// BeautifyError represents a structured error with code, status, and details.
type BeautifyError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// cause is the underlying error, if any. Not serialized.
	cause error
}

// Error implements the error interface.
func (e *BeautifyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause so errors.Is/As see through host failures.
func (e *BeautifyError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BeautifyError {
	return &BeautifyError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidParameter creates a 400 error for a parameter that cannot be clamped
// into range (NaN, unknown adjustment field).
func NewInvalidParameter(name string, value any) *BeautifyError {
	return &BeautifyError{
		Code:    ErrInvalidParameter,
		Status:  400,
		Message: fmt.Sprintf("invalid value for %s: %v", name, value),
		Details: map[string]any{"parameter": name, "value": value},
	}
}

// NewUnknownEffect creates a 404 error for a catalog lookup miss.
func NewUnknownEffect(name string) *BeautifyError {
	return &BeautifyError{
		Code:    ErrUnknownEffect,
		Status:  404,
		Message: fmt.Sprintf("unknown effect: %s", name),
		Details: map[string]any{"effect": name},
	}
}

// NewUnknownCategory creates a 404 error for a category lookup miss.
func NewUnknownCategory(name string) *BeautifyError {
	return &BeautifyError{
		Code:    ErrUnknownCategory,
		Status:  404,
		Message: fmt.Sprintf("unknown category: %s", name),
		Details: map[string]any{"category": name},
	}
}

// NewNotFound creates a 404 error for a missing session or history record.
func NewNotFound(kind, identifier string) *BeautifyError {
	return &BeautifyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewInvalidState creates a 409 error for an operation the current state does not allow.
func NewInvalidState(msg string) *BeautifyError {
	return &BeautifyError{
		Code:    ErrInvalidState,
		Status:  409,
		Message: msg,
	}
}

// NewTooManySessions creates a 429 error when the session registry is full.
func NewTooManySessions(max int) *BeautifyError {
	return &BeautifyError{
		Code:    ErrTooManySessions,
		Status:  429,
		Message: fmt.Sprintf("too many open sessions (max %d)", max),
		Details: map[string]any{"max_sessions": max},
	}
}

// NewCancelled creates a 499 error when the caller's context ends mid-operation.
func NewCancelled(op string) *BeautifyError {
	return &BeautifyError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewHostOperationFailed creates a 502 error wrapping a failure reported by the
// image host. The current recompute is aborted; the session stays usable.
func NewHostOperationFailed(op string, err error) *BeautifyError {
	msg := op + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s failed: %v", op, err)
	}
	return &BeautifyError{
		Code:    ErrHostOperationFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"operation": op},
		cause:   err,
	}
}

// NewCommitFailed creates a 500 error for a failed transfer onto the destination.
// The session cannot continue after this.
func NewCommitFailed(err error) *BeautifyError {
	msg := "commit to destination failed"
	if err != nil {
		msg = fmt.Sprintf("commit to destination failed: %v", err)
	}
	return &BeautifyError{
		Code:    ErrCommitFailed,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *BeautifyError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &BeautifyError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if an error (or anything it wraps) is a BeautifyError with the given code.
func Is(err error, code ErrorCode) bool {
	var bErr *BeautifyError
	if stderrors.As(err, &bErr) {
		return bErr.Code == code
	}
	return false
}

// As returns the BeautifyError in err's chain, if any.
func As(err error) (*BeautifyError, bool) {
	var bErr *BeautifyError
	if stderrors.As(err, &bErr) {
		return bErr, true
	}
	return nil, false
}
