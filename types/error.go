package types

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Engine error codes
const (
	ErrValidation          ErrorCode = "VALIDATION"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrExecution           ErrorCode = "EXECUTION"
	ErrTimeout             ErrorCode = "TIMEOUT"
	ErrGateFailure         ErrorCode = "GATE_FAILURE"
	ErrRollbackUnsupported ErrorCode = "ROLLBACK_UNSUPPORTED"
	ErrInternal            ErrorCode = "INTERNAL"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	StepID    string    `json:"step_id,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithStep attaches the failing step id.
func (e *Error) WithStep(stepID string) *Error {
	e.StepID = stepID
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// ValidationError aggregates every violation found while validating a
// workflow or gate definition. Registration is all-or-nothing: one
// ValidationError carries the complete list, not just the first problem.
type ValidationError struct {
	Subject    string   `json:"subject"`
	Violations []string `json:"violations"`
}

// NewValidationError creates a ValidationError for the given subject.
func NewValidationError(subject string, violations ...string) *ValidationError {
	return &ValidationError{Subject: subject, Violations: violations}
}

// Add appends a violation.
func (e *ValidationError) Add(format string, args ...any) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

// HasViolations reports whether any violation was recorded.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] validation of %s failed: %s",
		ErrValidation, e.Subject, strings.Join(e.Violations, "; "))
}

// NewNotFoundError creates a NotFound error for the given kind and id.
func NewNotFoundError(kind, id string) *Error {
	return NewError(ErrNotFound, fmt.Sprintf("%s %q not found", kind, id))
}

// NewTimeoutError creates a retryable Timeout error for a step.
func NewTimeoutError(stepID string, cause error) *Error {
	return NewError(ErrTimeout, "step timed out").
		WithStep(stepID).
		WithCause(cause).
		WithRetryable(true)
}
