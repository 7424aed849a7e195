package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in gateway terms, not HTTP terms.
type Code string

const (
	// CodeNotFound covers every "does not resolve" outcome: unknown domain,
	// unknown api name, schema list with no valid members, or a visibility
	// mismatch. The code never distinguishes "doesn't exist" from "not
	// visible" so existence is not leaked.
	CodeNotFound Code = "not_found"

	// CodeUnavailable means the backing registry or store could not be
	// reached. Transient; safe to retry.
	CodeUnavailable Code = "unavailable"

	// CodeUnauthenticated means a credential was present but invalid or
	// expired, or strict mode refused anonymous access.
	CodeUnauthenticated Code = "unauthenticated"

	// CodeConfiguration marks ambiguous or malformed tenant registrations
	// (duplicate domains, broken module data). Fatal at lookup time.
	CodeConfiguration Code = "configuration"

	// CodeBuildFailure means schema compilation failed. Surfaced to the
	// waiters of that build; the cache slot is freed for retry.
	CodeBuildFailure Code = "build_failure"

	CodeInvalidInput Code = "invalid_input"
	CodeInternal     Code = "internal_error"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across resolver, cache, and gate layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		// Preserve the original domain code, update message
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the domain code from an error chain, defaulting to
// CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
