// Package errors consolidates error definitions for the snapmetrics toolkit.
//
// It provides sentinel errors for every reportable condition, category
// checking functions, and wrapping utilities. Per-line parse failures are
// never errors: they are skipped and counted by the parser. Everything that
// aborts a file or an output shows up here.
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Format detection errors. A file whose layout cannot be identified is
	// never parsed with a guessed column map.
	ErrFormatUnrecognized = errors.New("snapshot format unrecognized")
	ErrMalformedHeader    = errors.New("malformed header")
	ErrEmptyFile          = errors.New("empty file")

	// Derivation errors.
	ErrNoReferenceTotal = errors.New("no reference total available")
	ErrNoRecords        = errors.New("no records parsed")
	ErrMissingField     = errors.New("missing required field")

	// Policy/configuration errors.
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrInvalidPolicy  = errors.New("invalid rescale policy")
	ErrMissingMaxTime = errors.New("header carries no max simulation time")

	// Export errors.
	ErrWriterClosed = errors.New("writer is closed")
	ErrNothingToDo  = errors.New("nothing to export")
)

// Is is a convenience wrapper for errors.Is.
var Is = errors.Is

// As is a convenience wrapper for errors.As.
var As = errors.As

// ============================================================================
// Category helpers
// ============================================================================

// IsFormatError returns true if err means the file's layout could not be
// established. Fatal for the file; siblings in a batch continue.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormatUnrecognized) ||
		errors.Is(err, ErrMalformedHeader) ||
		errors.Is(err, ErrEmptyFile)
}

// IsDerivationError returns true if err aborted metric derivation.
// Percentage output fails this way; absolute columns may still exist.
func IsDerivationError(err error) bool {
	return errors.Is(err, ErrNoReferenceTotal) ||
		errors.Is(err, ErrNoRecords) ||
		errors.Is(err, ErrMissingField)
}

// IsConfigError returns true if err is a configuration or policy error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrMissingMaxTime)
}

// ============================================================================
// Wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}
