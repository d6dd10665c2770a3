package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfirmationRequired is returned by destructive operations called without confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrNoSession indicates the caller has no live session.
	ErrNoSession = errors.New("no session")
	// ErrBackendUnavailable is wrapped by transport failures when a circuit breaker is open.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// ValidationError is a local user-input failure. Message is shown verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError.
func Invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// TransportError is a network-level failure talking to a backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx (or error-bodied) backend response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a ValidationError and returns its message.
func IsValidation(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	return "", false
}
