// Package models defines the canonical analysis schema shared by the
// transport client, normalizer and local result store.
package models

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a failure class. The set is closed: callers key
// user-facing behavior off the kind, never off the message text.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindTimeout            ErrorKind = "timeout"
	KindNetwork            ErrorKind = "network"
	KindHTTPError          ErrorKind = "http_error"
	KindAnalysisFailed     ErrorKind = "analysis_failed"
	KindInvalidResponse    ErrorKind = "invalid_response"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindSerialization      ErrorKind = "serialization_error"
	KindNotFound           ErrorKind = "not_found"
	KindUnknown            ErrorKind = "unknown"
)

// Error is a structured failure carrying a machine-readable kind and a
// human-readable message. Details holds whatever the backend attached to
// its error body, if anything.
type Error struct {
	Kind    ErrorKind
	Message string
	Details any
	cause   error
}

// NewError creates a taxonomy error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a taxonomy error preserving the underlying cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the taxonomy kind from an error chain. Errors that did
// not originate from this package report KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
