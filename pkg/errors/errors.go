package errors

import (
	"errors"
	"fmt"
)

// New returns an error with the given message.
func New(msg string) error {
	return errors.New(msg)
}

// ContextError annotates an error with the operation that caused it. The
// original error is preserved so that callers can inspect the root cause.
type ContextError struct {
	Context string
	Err     error
}

func (err ContextError) Error() string {
	return fmt.Sprintf("%s: %s", err.Context, err.Err)
}

// Unwrap makes ContextError compatible with the stdlib errors.Is/As helpers.
func (err ContextError) Unwrap() error {
	return err.Err
}

// WithContext wraps an error with a description of the operation that failed.
func WithContext(err error, context string) error {
	return ContextError{Context: context, Err: err}
}

// RootCause returns the innermost error in a chain of ContextErrors.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(ContextError)
		if !ok {
			return err
		}
		err = ctxErr.Err
	}
}

// FriendlyError is an error message meant to be read by the user. Its message
// is printed directly, without any additional context or stack information.
type FriendlyError struct {
	Message string
}

func (err FriendlyError) Error() string {
	return err.Message
}

// FriendlyMessage returns the message to show the user.
func (err FriendlyError) FriendlyMessage() string {
	return err.Message
}

// NewFriendlyError creates a FriendlyError with Printf-style formatting.
func NewFriendlyError(format string, args ...interface{}) error {
	return FriendlyError{Message: fmt.Sprintf(format, args...)}
}
