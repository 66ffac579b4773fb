package testbank

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("testbank: not found")
	ErrAlreadyExists = errors.New("testbank: already exists")

	// Contract errors
	ErrAlreadyInitialized = errors.New("testbank: already initialized")
	ErrInvalidConfig      = errors.New("testbank: invalid config")
	ErrInvalidSnapshot    = errors.New("testbank: invalid snapshot")

	// Record errors
	ErrReceiptNotFound  = errors.New("testbank: receipt not found")
	ErrSnapshotNotFound = errors.New("testbank: snapshot not found")

	// Store errors
	ErrStoreClosed     = errors.New("testbank: store is closed")
	ErrMigrationFailed = errors.New("testbank: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("testbank: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "testbank: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("testbank: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrReceiptNotFound) ||
		errors.Is(err, ErrSnapshotNotFound)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
