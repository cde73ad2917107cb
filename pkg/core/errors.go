// Package core holds the shared error taxonomy for the Amigo front-end.
package core

import (
	"errors"
	"fmt"
)

// Error is the common error type returned across the audio and session layers.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrPermission: microphone or device access denied. Surfaced to the
	// user, never retried.
	ErrPermission ErrorType = "permission_error"

	// ErrTransport: the live connection dropped or was rejected. The session
	// is forced to idle; no automatic reconnect.
	ErrTransport ErrorType = "transport_error"

	// ErrFormat: a malformed audio payload. The offending chunk is dropped
	// and the stream continues.
	ErrFormat ErrorType = "format_error"

	// ErrContentBlocked: the remote service filtered the request and
	// returned no result. Not a failure of the call itself.
	ErrContentBlocked ErrorType = "content_blocked"

	// ErrNetwork: a chat or image call failed at the HTTP layer. Caught at
	// the call site and replaced with a fallback message.
	ErrNetwork ErrorType = "network_error"

	// ErrInvalidRequest: a caller-side mistake (bad argument, wrong state).
	ErrInvalidRequest ErrorType = "invalid_request_error"
)

// NewPermissionError creates a permission error.
func NewPermissionError(message string, cause error) *Error {
	return &Error{Type: ErrPermission, Message: message, Cause: cause}
}

// NewTransportError creates a transport error.
func NewTransportError(message string, cause error) *Error {
	return &Error{Type: ErrTransport, Message: message, Cause: cause}
}

// NewFormatError creates a format error.
func NewFormatError(message string) *Error {
	return &Error{Type: ErrFormat, Message: message}
}

// NewContentBlockedError creates a content-blocked error.
func NewContentBlockedError(message string) *Error {
	return &Error{Type: ErrContentBlocked, Message: message}
}

// NewNetworkError creates a network error.
func NewNetworkError(message string, cause error) *Error {
	return &Error{Type: ErrNetwork, Message: message, Cause: cause}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// TypeOf returns the type of err when it is (or wraps) a *Error, and
// ErrTransport otherwise.
func TypeOf(err error) ErrorType {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTransport
}

// IsType reports whether err is a *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}
