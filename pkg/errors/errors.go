// Package errors provides custom error types for the coursemap system.
// These errors enable programmatic error checking across the reconciliation
// pipeline and keep the failure taxonomy in one place.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's chain matches target.
// It's an alias for the standard library errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// It's an alias for the standard library errors.As for convenience.
var As = errors.As

// Common sentinel errors for the coursemap system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateCode indicates two catalog entries normalize to one code
	ErrDuplicateCode = errors.New("duplicate catalog code")

	// ErrExternalCall indicates the semantic matching endpoint failed
	ErrExternalCall = errors.New("external call failed")

	// ErrPersistence indicates a commit to the mapping store failed
	ErrPersistence = errors.New("persistence failed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrReadOnly indicates an attempt to modify a read-only resource
	ErrReadOnly = errors.New("read only")
)

// InputValidationError represents bad or empty input handed to a pipeline
// stage. The run aborts before any external call is made.
type InputValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *InputValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("input validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("input validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *InputValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInputValidationError creates a new InputValidationError
func NewInputValidationError(field string, value interface{}, message string) *InputValidationError {
	return &InputValidationError{Field: field, Value: value, Message: message}
}

// DuplicateCodeError reports a catalog integrity violation: two entries
// whose codes normalize to the same key. The catalog snapshot is unusable
// and the run aborts before matching starts.
type DuplicateCodeError struct {
	Code     string // normalized form both entries collapse to
	FirstID  string
	SecondID string
}

// Error implements the error interface
func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("catalog entries %q and %q both normalize to code %q", e.FirstID, e.SecondID, e.Code)
}

// Is implements errors.Is support
func (e *DuplicateCodeError) Is(target error) bool {
	return target == ErrDuplicateCode
}

// ExternalCallError represents a network, timeout, or non-2xx failure from
// the semantic matching endpoint. It is not retried internally; the caller
// may retry with a fresh run.
type ExternalCallError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *ExternalCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("external call to %s failed (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("external call to %s failed: %s", e.Endpoint, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ExternalCallError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ExternalCallError) Is(target error) bool {
	if target == ErrExternalCall {
		return true
	}
	if target == ErrTimeout && errors.Is(e.Err, ErrTimeout) {
		return true
	}
	return target == ErrCanceled && errors.Is(e.Err, ErrCanceled)
}

// NewExternalCallError creates a new ExternalCallError
func NewExternalCallError(endpoint string, statusCode int, message string, err error) *ExternalCallError {
	return &ExternalCallError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// PersistenceError represents a failed commit. Per the atomicity contract
// the entire run's results are discarded, never partially applied.
type PersistenceError struct {
	Operation string // "commit", "read", "open", "migrate"
	SessionID string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("persistence %s failed for session %s: %s", e.Operation, e.SessionID, e.Message)
	}
	return fmt.Sprintf("persistence %s failed: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputValidation checks if an error is an input validation error
func IsInputValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsDuplicateCode checks if an error is a catalog duplicate code error
func IsDuplicateCode(err error) bool {
	return errors.Is(err, ErrDuplicateCode)
}

// IsExternalCall checks if an error came from the semantic matching endpoint
func IsExternalCall(err error) bool {
	return errors.Is(err, ErrExternalCall)
}

// IsPersistence checks if an error is a persistence error
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapPersistence wraps an error as a PersistenceError
func WrapPersistence(operation, sessionID string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{
		Operation: operation,
		SessionID: sessionID,
		Message:   err.Error(),
		Err:       err,
	}
}

// WrapExternalCall wraps an error as an ExternalCallError
func WrapExternalCall(endpoint string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalCallError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}
