// Package domainerrors provides domain errors with stable machine-readable codes.
// Services translate infrastructure sentinels into these so transports can map
// them to status codes without string matching, and so every user-visible
// failure carries a code, a human message and (when known) a correlation id.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are part of the API contract: they are
// returned verbatim in error responses and must stay stable.
type Code string

const (
	CodeInvalidInput        Code = "invalid_input"
	CodeBadRequest          Code = "bad_request"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeConcurrencyConflict Code = "concurrency_conflict"
	CodeIdempotencyKeyReuse Code = "idempotency_key_reuse"
	CodeTimeout             Code = "timeout"
	CodeInternal            Code = "internal"
)

// Error is a domain error with a stable code. It wraps an optional cause so
// errors.Is/As keep working across layers.
type Error struct {
	Code          Code
	Message       string
	CorrelationID string
	cause         error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and human message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. If the cause
// already carries a domain code, that code is preserved and only context is
// added, so the outermost classification made closest to the fault wins.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		code = de.Code
	}
	return &Error{Code: code, Message: message, cause: err}
}

// WithCorrelationID returns a copy of the error annotated with a correlation
// id for cross-system tracing. Non-domain errors are returned unchanged.
func WithCorrelationID(err error, correlationID string) error {
	var de *Error
	if err == nil || correlationID == "" || !errors.As(err, &de) {
		return err
	}
	annotated := *de
	annotated.CorrelationID = correlationID
	return &annotated
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the domain code from err, defaulting to CodeInternal for
// errors that never passed through a service-layer translation.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// CorrelationIDOf extracts the correlation id attached by WithCorrelationID,
// or "" when the error never passed a boundary that annotated it.
func CorrelationIDOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.CorrelationID
	}
	return ""
}

// MessageOf extracts the human message, hiding internal details for
// unclassified errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
