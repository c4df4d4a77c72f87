package types

import (
	"errors"
	"fmt"
)

// ErrorKind is one of the domain-level error categories a caller can branch on.
type ErrorKind string

const (
	ErrNotFound               ErrorKind = "not_found"
	ErrInvalidInput           ErrorKind = "invalid_input"
	ErrInvalidStateTransition ErrorKind = "invalid_state_transition"
	ErrExternalFailure        ErrorKind = "external_failure"
	ErrTimeoutExceeded        ErrorKind = "timeout_exceeded"
	ErrParseFailure           ErrorKind = "parse_failure"
	ErrCancelled              ErrorKind = "cancelled"
)

// DomainError wraps a cause with a kind and the component that raised it.
type DomainError struct {
	Kind      ErrorKind
	Component string
	Message   string
	Cause     error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Cause }

// IsKind reports whether err is, or wraps, a *DomainError of the given
// kind. ErrorKind is not itself an error value, so errors.Is cannot be
// used against it; callers use IsKind instead.
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

func NewError(kind ErrorKind, component, message string, cause error) *DomainError {
	return &DomainError{Kind: kind, Component: component, Message: message, Cause: cause}
}

func NotFound(component, message string) *DomainError {
	return NewError(ErrNotFound, component, message, nil)
}

func InvalidInput(component, message string) *DomainError {
	return NewError(ErrInvalidInput, component, message, nil)
}

func InvalidStateTransition(component, message string) *DomainError {
	return NewError(ErrInvalidStateTransition, component, message, nil)
}

func ExternalFailure(component, message string, cause error) *DomainError {
	return NewError(ErrExternalFailure, component, message, cause)
}

func ParseFailure(component, message string, cause error) *DomainError {
	return NewError(ErrParseFailure, component, message, cause)
}

func Cancelled(component, message string) *DomainError {
	return NewError(ErrCancelled, component, message, nil)
}
