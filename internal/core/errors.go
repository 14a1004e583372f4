// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// WithMessage creates a new error with the same code but a more specific message.
func WithMessage(base *Error, message string) *Error {
	return &Error{
		Code:    base.Code,
		Message: message,
	}
}

// Predefined errors
var (
	// Data errors
	ErrSymbolNotFound = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found in historical cache"}
	ErrRangeInvalid   = &Error{Code: "RANGE_INVALID", Message: "unknown time range"}
	ErrNoData         = &Error{Code: "NO_DATA", Message: "no data available"}

	// Routing errors
	ErrInvalidOperation = &Error{Code: "INVALID_OPERATION", Message: "operation not allowed in current data mode"}

	// Upstream errors
	ErrUpstreamUnavailable = &Error{Code: "UPSTREAM_UNAVAILABLE", Message: "live data adapter unavailable"}

	// Guardrail errors
	ErrMissingRiskContext = &Error{Code: "MISSING_RISK_CONTEXT", Message: "risk context missing or invalid"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
