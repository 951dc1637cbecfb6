// Package errors provides unit tests for application error codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

// TestNew tests creating an error with a code.
func TestNew(t *testing.T) {
	err := New(ErrValidation, "serialNumber is required")

	if err.Code != ErrValidation {
		t.Errorf("Expected code %s, got %s", ErrValidation, err.Code)
	}
	if err.Error() != "[VALIDATION_ERROR] serialNumber is required" {
		t.Errorf("Unexpected error string: %s", err.Error())
	}
}

// TestWrap tests wrapping an underlying error.
func TestWrap(t *testing.T) {
	cause := fmt.Errorf("disk I/O error")
	err := Wrap(ErrStorage, "failed to insert sync record", cause)

	if !stderrors.Is(err, cause) {
		t.Error("Expected wrapped error to match the cause via errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
}

// TestIs tests code matching.
func TestIs(t *testing.T) {
	err := New(ErrSyncConflict, "serial already sold")

	if !Is(err, ErrSyncConflict) {
		t.Error("Expected Is to match the error's code")
	}
	if Is(err, ErrSyncTransient) {
		t.Error("Expected Is to reject a different code")
	}
	if Is(fmt.Errorf("plain"), ErrSyncConflict) {
		t.Error("Expected Is to reject a non-AppError")
	}
}
