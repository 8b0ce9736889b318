// Package common defines sentinel errors and small helpers shared by every
// layer of the engine. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrAlreadyExists   = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Input errors. Client-correctable, never retried.
	ErrValidation        = errors.New("validation error")
	ErrUnknownEntityType = errors.New("unknown entity type")

	// State-conflict errors. The caller's view of the record is stale or a
	// business rule is not yet satisfied.
	ErrIllegalTransition    = errors.New("illegal transition")
	ErrPreconditionNotMet   = errors.New("precondition not met")
	ErrAlreadyInTargetState = errors.New("already in target state")
	ErrAlreadySigned        = errors.New("signature request already signed")

	// E-sign gate errors.
	ErrCredentialRejected = errors.New("credential rejected")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a shorthand for &ValidationError{...}.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
