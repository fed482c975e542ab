// Package errors defines the domain error taxonomy shared across
// services and handlers.
package errors

import "fmt"

// DomainError is a coded error that handlers can translate into an HTTP
// status and callers can match with errors.Is on the taxonomy values.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so wrapped
// instances built with WithMessage still compare equal to the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of the error with a more specific message
// while keeping the code for classification.
func (e *DomainError) WithMessage(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Error taxonomy. Validation, access, and state errors are returned to
// the immediate caller; external-service errors are retryable; limit
// rejections are policy decisions rather than bugs.
var (
	ErrValidation = &DomainError{
		Code:    "VALIDATION_ERROR",
		Message: "invalid input",
	}
	ErrAccessDenied = &DomainError{
		Code:    "ACCESS_DENIED",
		Message: "actor is not authorized for this action",
	}
	ErrInvalidState = &DomainError{
		Code:    "INVALID_STATE",
		Message: "operation not valid in current state",
	}
	ErrDuplicate = &DomainError{
		Code:    "DUPLICATE",
		Message: "conflicting active entity already exists",
	}
	ErrLimitExceeded = &DomainError{
		Code:    "LIMIT_EXCEEDED",
		Message: "velocity limit exceeded",
	}
	ErrExternalService = &DomainError{
		Code:    "EXTERNAL_SERVICE",
		Message: "external service unavailable",
	}
	ErrNotFound = &DomainError{
		Code:    "NOT_FOUND",
		Message: "entity not found",
	}
	ErrConflict = &DomainError{
		Code:    "CONFLICT",
		Message: "concurrent modification, retry",
	}
)
