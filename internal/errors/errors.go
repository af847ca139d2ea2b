package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a tipe error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"     // 404
	ErrAlreadyExists     ErrorCode = "ALREADY_EXISTS"     // 409
	ErrCancelled         ErrorCode = "CANCELLED"          // 499
	ErrInternal          ErrorCode = "INTERNAL"           // 500
	ErrSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE" // 502
)

// TipeError represents a structured error with code, status, and details.
type TipeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *TipeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TipeError {
	return &TipeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a record that does not exist.
// kind names the collection ("lead", "conversation", "meeting", "content post").
func NewNotFound(kind, id string) *TipeError {
	return &TipeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *TipeError {
	return &TipeError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewAlreadyExists creates a 409 error when an id is already taken.
func NewAlreadyExists(kind, id string) *TipeError {
	return &TipeError{
		Code:    ErrAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("%s already exists: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewCancelled creates a 499 error when an operation was interrupted by its context.
func NewCancelled(op string) *TipeError {
	return &TipeError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewSourceUnavailable creates a 502 error when the lead source cannot be reached
// or answers with something other than a record list.
func NewSourceUnavailable(source string, err error) *TipeError {
	msg := fmt.Sprintf("lead source %q unavailable", source)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &TipeError{
		Code:    ErrSourceUnavailable,
		Status:  502,
		Message: msg,
		Details: map[string]any{"source": source},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging only.
func NewInternal(err error) *TipeError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &TipeError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// As extracts a *TipeError from err, following wrapped errors.
func As(err error) (*TipeError, bool) {
	var tErr *TipeError
	if stderrors.As(err, &tErr) {
		return tErr, true
	}
	return nil, false
}

// Is checks if an error (or anything it wraps) is a TipeError with the given code.
func Is(err error, code ErrorCode) bool {
	if tErr, ok := As(err); ok {
		return tErr.Code == code
	}
	return false
}
