package testutil

import (
	"errors"
	"testing"

	apperrors "cuadra/internal/errors"
)

// AssertAppError checks that err is an *AppError with the expected error code
// and returns it for further inspection.
func AssertAppError(t *testing.T, err error, expectedCode string) *apperrors.AppError {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
	return appErr
}

// AssertValidationError checks that err is an INVALID_INPUT error naming field.
func AssertValidationError(t *testing.T, err error, field string) {
	t.Helper()

	appErr := AssertAppError(t, err, apperrors.ErrInvalidInput.Code)
	if appErr.Field != field {
		t.Errorf("expected invalid field %q, got %q (message: %s)", field, appErr.Field, appErr.Message)
	}
}

// AssertVersionIncreased fails unless after is strictly greater than before.
func AssertVersionIncreased(t *testing.T, before, after int64) {
	t.Helper()

	if after <= before {
		t.Errorf("expected version to increase, got %d after %d", after, before)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
