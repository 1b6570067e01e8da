package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrEmptyStructure rejects snapshot creation from a template without at
	// least one capability holding at least one criterion.
	ErrEmptyStructure = New("EMPTY_STRUCTURE", http.StatusUnprocessableEntity, "rubric structure is empty")
	// ErrNoCriticalCriteria rejects threshold generation when the rubric has
	// no critical criteria to level against.
	ErrNoCriticalCriteria = New("NO_CRITICAL_CRITERIA", http.StatusUnprocessableEntity, "rubric has no critical criteria")
	// ErrCriterionMismatch rejects an evaluation whose criterion does not
	// belong to the snapshot named by the caller.
	ErrCriterionMismatch = New("CRITERION_MISMATCH", http.StatusUnprocessableEntity, "criterion does not belong to snapshot")
	// ErrNoEvaluations rejects finalize/reopen with nothing to act on.
	ErrNoEvaluations = New("NO_EVALUATIONS", http.StatusUnprocessableEntity, "no evaluations recorded")
	// ErrTimeout signals the transactional budget was exceeded; the write
	// rolled back and the caller may retry.
	ErrTimeout = New("TIMEOUT", http.StatusRequestTimeout, "operation timed out, retry")

	// ErrCacheMiss is internal to the report cache path.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
