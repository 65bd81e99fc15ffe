// Package apperr classifies the failures SnapSum reports to the user.
//
// Every surface (GUI, CLI, MCP server) decides how to present an error by its
// Kind: input errors are recoverable by retrying with a different image or
// region, recognition errors come from the OCR engine, and config errors stop
// the program before it becomes interactive.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind string

const (
	KindInput       Kind = "INPUT"
	KindRecognition Kind = "RECOGNITION"
	KindConfig      Kind = "CONFIG"
	KindUnknown     Kind = "UNKNOWN"
)

// Error is a categorized failure with an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Input reports a user-input problem such as a missing file.
func Input(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInput, Message: fmt.Sprintf(format, args...)}
}

// InputCause wraps cause as an input error.
func InputCause(cause error, message string) *Error {
	return &Error{Kind: KindInput, Message: message, Cause: cause}
}

// Recognition wraps an OCR engine failure.
func Recognition(cause error, message string) *Error {
	return &Error{Kind: KindRecognition, Message: message, Cause: cause}
}

// Config wraps an invalid configuration value.
func Config(cause error, message string) *Error {
	return &Error{Kind: KindConfig, Message: message, Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsInput reports whether err is an input error.
func IsInput(err error) bool {
	return KindOf(err) == KindInput
}
