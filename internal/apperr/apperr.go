// Package apperr defines the failure kinds raised by the service adapters
// and handlers. Only the message of an Error ever crosses the router; the
// kind exists so handlers and tests can tell failures apart.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	InvalidInput      Kind = "InvalidInput"
	NotConfigured     Kind = "NotConfigured"
	InvalidURL        Kind = "InvalidUrl"
	APIError          Kind = "ApiError"
	MalformedResponse Kind = "MalformedResponse"
	UploadFailed      Kind = "UploadFailed"
	SendFailed        Kind = "SendFailed"
)

// Error is a classified failure. Status is set for APIError.
type Error struct {
	Kind   Kind
	Msg    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or anything it wraps) is an Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
