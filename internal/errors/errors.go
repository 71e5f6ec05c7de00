// Package errors provides custom error types for the finledger API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError into the domain error taxonomy.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindInvalidOperation     Kind = "invalid_operation"
	KindInsufficientQuantity Kind = "insufficient_quantity"
	KindOverPayment          Kind = "over_payment"
	KindInvariantViolation   Kind = "invariant_violation"
	KindUnauthorized         Kind = "unauthorized"
	KindConflict             Kind = "conflict"
	KindInternal             Kind = "internal"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Kind       Kind   `json:"-"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches any AppError carrying the same code, so that errors built with
// Wrap or WithMessage still match their sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Kind:       sentinel.Kind,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		Kind:       sentinel.Kind,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Withf is WithMessage with fmt formatting.
func Withf(sentinel *AppError, format string, args ...any) *AppError {
	return WithMessage(sentinel, fmt.Sprintf(format, args...))
}

// KindOf returns the taxonomy kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", Kind: KindUnauthorized, StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", Kind: KindUnauthorized, StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", Kind: KindInvalidOperation, StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", Kind: KindNotFound, StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", Kind: KindInternal, StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", Kind: KindNotFound, StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", Kind: KindConflict, StatusCode: http.StatusConflict}
)

// Account errors.
var (
	ErrAccountNotFound = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", Kind: KindNotFound, StatusCode: http.StatusNotFound}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", Kind: KindNotFound, StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Unsupported transaction type", Kind: KindInvalidOperation, StatusCode: http.StatusBadRequest}
	ErrTransactionNotEditable = &AppError{Code: "TRANSACTION_NOT_EDITABLE", Message: "This transaction is managed by an investment operation or financing payment", Kind: KindInvalidOperation, StatusCode: http.StatusBadRequest}
)

// Investment errors.
var (
	ErrInvalidOperation     = &AppError{Code: "INVALID_OPERATION", Message: "Invalid operation", Kind: KindInvalidOperation, StatusCode: http.StatusBadRequest}
	ErrPositionNotFound     = &AppError{Code: "POSITION_NOT_FOUND", Message: "Investment position not found", Kind: KindNotFound, StatusCode: http.StatusNotFound}
	ErrOperationNotFound    = &AppError{Code: "OPERATION_NOT_FOUND", Message: "Investment operation not found", Kind: KindNotFound, StatusCode: http.StatusNotFound}
	ErrInsufficientQuantity = &AppError{Code: "INSUFFICIENT_QUANTITY", Message: "Insufficient quantity for this sale", Kind: KindInsufficientQuantity, StatusCode: http.StatusUnprocessableEntity}
)

// Financing errors.
var (
	ErrFinancingNotFound  = &AppError{Code: "FINANCING_NOT_FOUND", Message: "Financing contract not found", Kind: KindNotFound, StatusCode: http.StatusNotFound}
	ErrPaymentNotFound    = &AppError{Code: "PAYMENT_NOT_FOUND", Message: "Financing payment not found", Kind: KindNotFound, StatusCode: http.StatusNotFound}
	ErrUnsupportedMethod  = &AppError{Code: "UNSUPPORTED_METHOD", Message: "Unsupported amortization method", Kind: KindInvalidOperation, StatusCode: http.StatusBadRequest}
	ErrOverPayment        = &AppError{Code: "OVER_PAYMENT", Message: "Payment exceeds the outstanding balance", Kind: KindOverPayment, StatusCode: http.StatusUnprocessableEntity}
	ErrInvariantViolation = &AppError{Code: "INVARIANT_VIOLATION", Message: "Internal consistency check failed", Kind: KindInvariantViolation, StatusCode: http.StatusInternalServerError}
)
