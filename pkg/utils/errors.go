package utils

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// AppError is an infrastructure failure tagged with a code. It records the
// call site and, when built with Wrap, the underlying cause.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	StackTrace string `json:"stack_trace,omitempty"`

	cause error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAppError creates an error with optional details
func NewAppError(code, message string, details ...string) *AppError {
	return newAppError(2, code, message, strings.Join(details, "; "), nil)
}

// Wrap tags err with a code; errors.Is and errors.As see through to err
func Wrap(err error, code, message string) *AppError {
	if err == nil {
		return newAppError(2, code, message, "", nil)
	}
	return newAppError(2, code, message, err.Error(), err)
}

func newAppError(skip int, code, message, details string, cause error) *AppError {
	_, file, line, _ := runtime.Caller(skip)
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		File:    file,
		Line:    line,
		cause:   cause,
	}
}

// Unwrap returns the wrapped cause, if any
func (e *AppError) Unwrap() error { return e.cause }

// WithStackTrace captures the current goroutine's stack
func (e *AppError) WithStackTrace() *AppError {
	buf := make([]byte, 2048)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) || len(buf) >= 64<<10 {
			e.StackTrace = string(buf[:n])
			return e
		}
		buf = make([]byte, len(buf)*2)
	}
}

// ErrorCode returns the AppError code found in err's chain, or "" if there is none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Error codes
const (
	ErrCodeNetwork       = "NETWORK_ERROR"
	ErrCodeStorage       = "STORAGE_ERROR"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeAuth          = "AUTH_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeSerialization = "SERIALIZATION_ERROR"
)
