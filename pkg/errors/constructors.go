package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a code and message. The wrapped error
// becomes the Cause of the new error. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message.
// Returns nil if err is nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validation creates a new validation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Unauthenticated creates a new authentication error. Use this when a
// token is missing, malformed, or fails verification.
func Unauthenticated(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden creates a new authorization error. Use this when a verified
// caller lacks a required permission. Note that the transport layer still
// responds 401 (see Error.HTTPStatus).
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// Internal creates a new internal error.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Unavailable creates a new dependency-unavailable error.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// FromError converts any error to an *Error. If err already is one (at any
// depth of the chain), it is returned as-is; otherwise it is wrapped as an
// internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
