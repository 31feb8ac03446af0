package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// WrappedError is an error that records where it was wrapped.
type WrappedError struct {
	msg    string
	cause  error
	caller string
}

// Error implements the error interface.
func (e *WrappedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap returns the underlying error.
func (e *WrappedError) Unwrap() error {
	return e.cause
}

// Caller returns the file:line where the error was wrapped.
func (e *WrappedError) Caller() string {
	return e.caller
}

// WrapError wraps an error with a message and caller information.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	caller := "unknown"
	if _, file, line, ok := runtime.Caller(1); ok {
		caller = fmt.Sprintf("%s:%d", shortPath(file, 2), line)
	}

	return &WrappedError{msg: msg, cause: err, caller: caller}
}

// WithError creates an slog.Attr for an error with detailed information.
func WithError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}

	attrs := []any{
		slog.String("message", err.Error()),
		slog.String("type", fmt.Sprintf("%T", err)),
	}

	if cause := errors.Unwrap(err); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}

	var we *WrappedError
	if errors.As(err, &we) {
		attrs = append(attrs, slog.String("caller", we.Caller()))
	}

	return slog.Group("error", attrs...)
}

// ErrorGroup creates a group of error attributes including the unwrap chain.
func ErrorGroup(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}

	attrs := []any{
		slog.String("message", err.Error()),
		slog.String("type", fmt.Sprintf("%T", err)),
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %s", e, e.Error()))
	}
	if len(chain) > 1 {
		attrs = append(attrs, slog.Any("chain", chain))
	}

	return slog.Group("error", attrs...)
}

func shortPath(file string, keep int) string {
	parts := strings.Split(file, "/")
	if len(parts) > keep {
		return strings.Join(parts[len(parts)-keep:], "/")
	}
	return file
}
