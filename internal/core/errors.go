// Package core defines the error vocabulary shared by every component of the
// call gateway: a closed set of error kinds and a single wrapping error type
// carrying the operation, kind, message, and underlying cause.
package core

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of error kinds every component reports.
type ErrorCode string

const (
	// ErrValidation indicates malformed or semantically invalid input.
	ErrValidation ErrorCode = "validation"

	// ErrAuth indicates an authentication or authorization failure.
	ErrAuth ErrorCode = "authentication"

	// ErrNotFound indicates the referenced resource does not exist.
	ErrNotFound ErrorCode = "not_found"

	// ErrRateLimit indicates the caller has been throttled.
	ErrRateLimit ErrorCode = "rate_limit"

	// ErrServerError indicates a 5xx-class failure from a remote peer.
	ErrServerError ErrorCode = "server_error"

	// ErrConnection indicates a transport-level failure (dial, reset, DNS).
	ErrConnection ErrorCode = "connection"

	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout ErrorCode = "timeout"

	// ErrCancelled indicates the operation was cancelled by its caller.
	ErrCancelled ErrorCode = "cancelled"

	// ErrInternal indicates a bug or invariant violation inside the gateway
	// itself, as opposed to a remote or caller fault.
	ErrInternal ErrorCode = "internal"
)

// retryableCodes is the subset of kinds §7 of the specification marks as
// retried by the media API client under its retry policy.
var retryableCodes = map[ErrorCode]bool{
	ErrRateLimit:   true,
	ErrServerError: true,
	ErrConnection:  true,
	ErrTimeout:     true,
}

// Error is the wrapping error type every component constructs. Op names the
// failing operation (e.g. "media.CreateRoom"), Code classifies the failure,
// Message is a human-readable summary, and Err is the optional underlying
// cause.
type Error struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

// NewError constructs an Error. message may be empty, in which case Error()
// falls back to the underlying error's text.
func NewError(op string, code ErrorCode, message string, err error) *Error {
	return &Error{Op: op, Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	return fmt.Sprintf("%s: [%s] %s", e.Op, e.Code, msg)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code, so callers can
// write errors.Is(err, &core.Error{Code: core.ErrNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsRetryable reports whether err, or an *Error wrapped within it, carries a
// code the retry policy in §4.2/§7 considers retryable. Plain errors (not
// constructed via NewError) are never retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return retryableCodes[e.Code]
	}
	return false
}

// Code extracts the ErrorCode from err if it is (or wraps) an *Error, and
// reports whether one was found.
func Code(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
