package errs

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")

	ErrValidation             = errors.New("validation error")
	ErrNotFoundOrAccessDenied = errors.New("not found or access denied")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrTokenExpired           = errors.New("token expired")
	ErrLeaseConflict          = errors.New("lease conflict")
	ErrUnknownEventType       = errors.New("unknown event type")
	ErrUnauthorized           = errors.New("unauthorized")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
