package testutil

import (
	"errors"
	"testing"

	apperrors "finledger/internal/errors"
	"finledger/internal/money"
)

func asAppError(t *testing.T, err error, want string) *apperrors.AppError {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError %s, got nil", want)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	return appErr
}

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	appErr := asAppError(t, err, expectedCode)
	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertErrorKind checks the taxonomy kind of an *AppError regardless of
// its specific code.
func AssertErrorKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()

	appErr := asAppError(t, err, string(kind))
	if appErr.Kind != kind {
		t.Errorf("expected error kind %q, got %q (code: %s)", kind, appErr.Kind, appErr.Code)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertMoney fails the test if got differs from the decimal string want.
func AssertMoney(t *testing.T, got money.Money, want string) {
	t.Helper()

	if got != money.MustParse(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// AssertQuantity fails the test if got differs from the decimal string want.
func AssertQuantity(t *testing.T, got money.Quantity, want string) {
	t.Helper()

	if got != money.MustParseQuantity(want) {
		t.Errorf("expected quantity %s, got %s", want, got)
	}
}
