package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeStorage        ErrorType = "storage"
	ErrorTypeInvalidLineage ErrorType = "invalid_lineage"
	ErrorTypeInternal       ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. Domain errors match on type only.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error. Never call it on the shared sentinels below.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrEventNotFound = NewDomainError(ErrorTypeNotFound, "fact history event not found", nil)

	// Validation Errors
	ErrInvalidInput     = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidAction    = NewDomainError(ErrorTypeValidation, "invalid fact action", nil)
	ErrSelfSupersession = NewDomainError(ErrorTypeValidation, "fact cannot supersede itself", nil)

	// Storage Errors
	ErrStorageWriteFailed = NewDomainError(ErrorTypeStorage, "storage write failed", nil)
	ErrStorageReadFailed  = NewDomainError(ErrorTypeStorage, "storage read failed", nil)

	// Lineage Errors
	ErrInvalidLineage = NewDomainError(ErrorTypeInvalidLineage, "invalid supersession lineage", nil)

	// Internal Errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsStorageError checks if an error is a storage read or write failure
func IsStorageError(err error) bool {
	return GetErrorType(err) == ErrorTypeStorage
}

// IsInvalidLineageError checks if an error is a supersession lineage error
func IsInvalidLineageError(err error) bool {
	return GetErrorType(err) == ErrorTypeInvalidLineage
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapStorageRead wraps an adapter error from a read path
func WrapStorageRead(message string, err error) error {
	return NewDomainError(ErrorTypeStorage, message, err).WithDetail("op", "read")
}

// WrapStorageWrite wraps an adapter error from an insert or delete
func WrapStorageWrite(message string, err error) error {
	return NewDomainError(ErrorTypeStorage, message, err).WithDetail("op", "write")
}

// Validationf builds a validation error with a formatted message
func Validationf(format string, args ...interface{}) error {
	return NewDomainError(ErrorTypeValidation, fmt.Sprintf(format, args...), nil)
}
