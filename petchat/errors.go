package petchat

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// Caller errors
	ErrorInvalidArgument
	ErrorInvalidConfig

	// Connection errors
	ErrorConnection
	ErrorDisconnected
	ErrorTimeout
	ErrorNotConnected

	// Payload and API errors
	ErrorSerialization
	ErrorServer
	ErrorHTTP
	ErrorRateLimited
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorInvalidArgument:
		return "invalid_argument"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorConnection:
		return "connection_error"
	case ErrorDisconnected:
		return "disconnected"
	case ErrorTimeout:
		return "timeout"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorSerialization:
		return "serialization_error"
	case ErrorServer:
		return "server_error"
	case ErrorHTTP:
		return "http_error"
	case ErrorRateLimited:
		return "rate_limited"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

var (
	// ErrMissingUserID is returned by Connect when the user id is empty.
	ErrMissingUserID = NewError(ErrorInvalidArgument, "user id is required")
	// ErrMissingToken is returned by Connect when the auth token is empty.
	ErrMissingToken = NewError(ErrorInvalidArgument, "authentication token is required")
)

// ChatError is a structured error with code and context.
type ChatError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ChatError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is the same *ChatError. A target without a
// message, such as NewError(ErrorTimeout, ""), matches any error with its code.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	return t.Message == "" && e.Code == t.Code
}

// NewError creates a new ChatError with the given code and message.
func NewError(code ErrorCode, message string) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a ChatError.
func WrapError(code ErrorCode, message string, err error) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// CodeOf returns the code of the first ChatError in err's chain, or ErrorUnknown.
func CodeOf(err error) ErrorCode {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrorUnknown
}

// IsConnectionError checks if an error is a connection-related error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrorConnection, ErrorDisconnected, ErrorTimeout, ErrorNotConnected:
		return true
	default:
		return false
	}
}
