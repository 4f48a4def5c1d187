// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Authorization errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "mastery", "progress", "usage"
	Op      string // Operation that failed, e.g., "Record", "Classify"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Identity domain errors
var (
	ErrIdentityUnresolved = NewDomainError("identity", "Resolve", ErrUnauthenticated, "no resolvable identity")
	ErrInvalidRole        = NewDomainError("identity", "Validate", ErrInvalidInput, "invalid role")
	ErrInsufficientRole   = NewDomainError("identity", "Authorize", ErrForbidden, "role not allowed for this operation")
	ErrOwnershipViolation = NewDomainError("identity", "Authorize", ErrForbidden, "cannot write another subject's data")
)

// Interaction domain errors
var (
	ErrInteractionNotFound    = NewDomainError("interaction", "Find", ErrNotFound, "interaction not found")
	ErrInvalidInteractionType = NewDomainError("interaction", "Validate", ErrInvalidInput, "unknown interaction type")
	ErrMissingSubject         = NewDomainError("interaction", "Validate", ErrEmptyValue, "subject name is required")
	ErrMissingGrade           = NewDomainError("interaction", "Validate", ErrEmptyValue, "grade is required")
	ErrMissingTopic           = NewDomainError("interaction", "Validate", ErrEmptyValue, "topic title is required")
)

// Mastery domain errors
var (
	ErrMasteryNotFound   = NewDomainError("mastery", "Find", ErrNotFound, "topic mastery not found")
	ErrCounterRegression = NewDomainError("mastery", "Update", ErrInvalidState, "mastery counters may not decrease")
	ErrInvalidMasteryRow = NewDomainError("mastery", "Validate", ErrInvalidEntity, "correct answers exceed total interactions")
)

// Progress domain errors
var (
	ErrProgressNotFound = NewDomainError("progress", "Find", ErrNotFound, "student progress not found")
)

// Usage domain errors
var (
	ErrInvalidUsageEventType = NewDomainError("usage", "Validate", ErrInvalidInput, "unknown usage event type")
)

// External service errors
var (
	ErrIdentityProviderUnavailable = NewDomainError("identity", "Request", ErrServiceUnavailable, "identity provider is unavailable")
	ErrIdentityProviderTimeout     = NewDomainError("identity", "Request", ErrTimeout, "identity provider request timeout")
	ErrIdentityInvalidResponse     = NewDomainError("identity", "Parse", ErrInvalidFormat, "invalid response from identity provider")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsUnauthenticated checks if the error means no identity could be resolved.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsForbidden checks if the error is a permission error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
