// Package dErrors provides coded domain errors. Services return these so
// transport layers can map outcomes to responses without string matching,
// and so callers can distinguish recoverable rejections from internal faults.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable API; messages are not.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeNotFound           Code = "not_found"
	CodeForbidden          Code = "forbidden"
	CodeUnauthorized       Code = "unauthorized"
	CodeConflict           Code = "conflict"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeTerminalState      Code = "terminal_state"
	CodeCustodyConflict    Code = "custody_conflict"
	CodeDuplicateRequest   Code = "duplicate_request"
	CodeUsernameTaken      Code = "username_taken"
	CodeAlreadyReviewed    Code = "already_reviewed"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a domain error with a stable code and a human-readable message.
// The message may name the conflicting state (which department, which status)
// so callers can correct and retry; it must never carry storage internals.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a domain code and message, preserving the cause for
// errors.Is/As chains. Wrapping nil returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the code of the outermost domain error in the chain, or
// CodeInternal when err carries no domain code.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost domain error, or an opaque
// fallback for uncoded errors so storage details never leak to callers.
func MessageOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return "internal error"
}
