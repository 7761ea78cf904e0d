// Package errors defines the stable error kinds surfaced by the ledger.
// Every failure carries a machine-readable code and, for money-related
// failures, the numeric amounts involved so callers can render an actionable
// message.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeConflict          = "CONFLICT"
	CodeNotFound          = "NOT_FOUND"
	CodeGateway           = "GATEWAY_ERROR"
)

// DomainError is the error type crossing service boundaries. Details holds
// the numbers a caller needs (remaining, balance, threshold).
type DomainError struct {
	Code    string
	Message string
	Details map[string]string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetail returns a copy of the error carrying an extra detail field.
func (e *DomainError) WithDetail(key, value string) *DomainError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Details: details}
}

// Validation builds a VALIDATION_ERROR.
func Validation(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied builds a PERMISSION_DENIED error.
func PermissionDenied(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodePermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// InsufficientFunds builds an INSUFFICIENT_FUNDS error with the balance and
// requested amount attached.
func InsufficientFunds(balance, requested string) *DomainError {
	return &DomainError{
		Code:    CodeInsufficientFunds,
		Message: fmt.Sprintf("wallet balance %s is less than requested amount %s", balance, requested),
		Details: map[string]string{"balance": balance, "requested": requested},
	}
}

// Conflict builds a CONFLICT error (double vote, double confirmation).
func Conflict(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NOT_FOUND error.
func NotFound(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Gateway builds a GATEWAY_ERROR. Retryable by the caller with a new capture;
// never retried server-side since that could double-charge.
func Gateway(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeGateway, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the domain code of err, or "" if err is not a DomainError.
func CodeOf(err error) string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
