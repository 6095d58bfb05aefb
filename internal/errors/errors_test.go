package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestCategoryHelpers(t *testing.T) {
	tests := []struct {
		err        error
		format     bool
		derivation bool
		config     bool
	}{
		{ErrFormatUnrecognized, true, false, false},
		{ErrMalformedHeader, true, false, false},
		{ErrEmptyFile, true, false, false},
		{ErrNoReferenceTotal, false, true, false},
		{ErrNoRecords, false, true, false},
		{ErrInvalidPolicy, false, false, true},
		{ErrMissingMaxTime, false, false, true},
		{Wrap(ErrFormatUnrecognized, "context"), true, false, false},
		{fmt.Errorf("deep: %w", Wrapf(ErrNoReferenceTotal, "file %s", "x")), false, true, false},
		{ErrWriterClosed, false, false, false},
	}

	for _, tt := range tests {
		if got := IsFormatError(tt.err); got != tt.format {
			t.Errorf("IsFormatError(%v) = %v, want %v", tt.err, got, tt.format)
		}
		if got := IsDerivationError(tt.err); got != tt.derivation {
			t.Errorf("IsDerivationError(%v) = %v, want %v", tt.err, got, tt.derivation)
		}
		if got := IsConfigError(tt.err); got != tt.config {
			t.Errorf("IsConfigError(%v) = %v, want %v", tt.err, got, tt.config)
		}
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) != nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) != nil")
	}
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("rescale.policy", "unknown policy")
	if !Is(err, ErrInvalidConfig) {
		t.Errorf("NewValidation error does not wrap ErrInvalidConfig: %v", err)
	}
	if !strings.Contains(err.Error(), "rescale.policy") {
		t.Errorf("error %q does not name the field", err)
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.HasErrors() {
		t.Error("new collector reports errors")
	}
	if v.Err() != nil {
		t.Errorf("empty collector Err() = %v, want nil", v.Err())
	}

	v.AddField("batch.workers", "must be positive")
	v.AddField("export", "no format enabled")
	v.Add(nil) // ignored

	if !v.HasErrors() {
		t.Fatal("collector with errors reports none")
	}
	err := v.Err()
	if err == nil {
		t.Fatal("Err() = nil with collected errors")
	}
	if !Is(err, ErrInvalidConfig) {
		t.Errorf("collected error does not unwrap to ErrInvalidConfig: %v", err)
	}
	if !strings.Contains(err.Error(), "2 errors") {
		t.Errorf("error %q does not report the count", err)
	}
}
