package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
)

// ErrorCode represents a Rutina error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED" // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrConflict         ErrorCode = "CONFLICT"          // 409
	ErrPayloadTooLarge  ErrorCode = "PAYLOAD_TOO_LARGE" // 413
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// RutinaError represents a structured error with code, status, and details.
type RutinaError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *RutinaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for malformed requests.
func NewInvalidRequest(msg string) *RutinaError {
	return &RutinaError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewValidation creates a 400 error carrying one message per rejected field.
// Fields are keyed by their wire name, e.g. "age" or "feedback[1].outcome".
func NewValidation(fields map[string]string) *RutinaError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return &RutinaError{
		Code:    ErrValidationFailed,
		Status:  400,
		Message: fmt.Sprintf("invalid input: %v", names),
		Details: map[string]any{"fields": fields},
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(kind, identifier string) *RutinaError {
	return &RutinaError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *RutinaError {
	return &RutinaError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewPayloadTooLarge creates a 413 error when a request body or blob exceeds its limit.
func NewPayloadTooLarge(max, actual int) *RutinaError {
	return &RutinaError{
		Code:    ErrPayloadTooLarge,
		Status:  413,
		Message: fmt.Sprintf("payload exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewBodyTooLarge creates a 413 error for a request body cut off at max bytes.
func NewBodyTooLarge(max int64) *RutinaError {
	return &RutinaError{
		Code:    ErrPayloadTooLarge,
		Status:  413,
		Message: fmt.Sprintf("request body exceeds %d bytes", max),
		Details: map[string]any{"max_bytes": max},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *RutinaError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &RutinaError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// As converts any error into a RutinaError, wrapping unknown errors as INTERNAL.
func As(err error) *RutinaError {
	var rErr *RutinaError
	if stderrors.As(err, &rErr) {
		return rErr
	}
	return NewInternal(err)
}

// Is checks if an error is a RutinaError with the given code.
func Is(err error, code ErrorCode) bool {
	var rErr *RutinaError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}
