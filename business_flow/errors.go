// Package businessflow contains the core business logic for registration, authentication and message scheduling
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Credential-related errors
	ErrPhoneAlreadyRegistered = errors.New("phone already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUnauthenticated        = errors.New("unauthenticated")

	// Message-related errors
	ErrValidation      = errors.New("validation failed")
	ErrMessageNotFound = errors.New("message not found")
	ErrStatusConflict  = errors.New("message status conflict")

	// Infrastructure errors
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
)

// ValidationError names the offending input field
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// downstream tags an infrastructure failure so callers can tell it from bad input
func downstream(err error) error {
	return errors.Join(ErrDownstreamUnavailable, err)
}

func IsPhoneAlreadyRegistered(err error) bool {
	return errors.Is(err, ErrPhoneAlreadyRegistered)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsMessageNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound)
}

func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}

func IsDownstreamUnavailable(err error) bool {
	return errors.Is(err, ErrDownstreamUnavailable)
}

// AsValidationError extracts the field-level detail from err, if any
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
