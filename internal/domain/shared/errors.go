package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for callers and transports
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION"         // Bad input, detected before any write
	KindNotFound          ErrorKind = "NOT_FOUND"          // Unresolved id
	KindStateConflict     ErrorKind = "STATE_CONFLICT"     // Wrong status for the requested transition
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS" // Credit or balance shortfall
	KindCrossTenant       ErrorKind = "CROSS_TENANT"       // Customer/invoice mismatch
	KindPersistence       ErrorKind = "PERSISTENCE"        // Store failure mid-transaction
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches another DomainError by kind and code
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindValidation, code, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a not-found error for the named resource
func NewNotFoundError(resource string, id fmt.Stringer) *DomainError {
	return NewDomainError(KindNotFound, "NOT_FOUND", fmt.Sprintf("%s %s not found", resource, id))
}

// NewStateConflictError creates a state conflict error
func NewStateConflictError(format string, args ...any) *DomainError {
	return NewDomainError(KindStateConflict, "INVALID_STATE", fmt.Sprintf(format, args...))
}

// NewInsufficientFundsError creates an insufficient-funds error
func NewInsufficientFundsError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindInsufficientFunds, code, fmt.Sprintf(format, args...))
}

// NewCrossTenantError creates a customer mismatch error
func NewCrossTenantError(format string, args ...any) *DomainError {
	return NewDomainError(KindCrossTenant, "CROSS_TENANT", fmt.Sprintf(format, args...))
}

// WrapPersistence wraps a store failure. Domain errors pass through untouched.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return &DomainError{
		Kind:    KindPersistence,
		Code:    "PERSISTENCE_ERROR",
		Message: fmt.Sprintf("%s: %v", op, err),
		cause:   err,
	}
}

// KindOf returns the kind of a domain error, or an empty kind for foreign errors
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError(KindValidation, "INVALID_INPUT", "Invalid input provided")
	ErrNoEligibleInvoices  = NewDomainError(KindValidation, "NO_ELIGIBLE_INVOICES", "None of the requested invoices can receive this payment")
	ErrInvalidState        = NewDomainError(KindStateConflict, "INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientBalance = NewDomainError(KindInsufficientFunds, "INSUFFICIENT_BALANCE", "Insufficient balance available")
)
