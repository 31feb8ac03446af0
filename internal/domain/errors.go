package domain

import (
	"context"
	"errors"
)

// Error taxonomy shared by every retrieval component. Callers classify with errors.Is.
var (
	// ErrNotFound means a locator did not resolve or a record is missing.
	ErrNotFound = errors.New("not found")

	// ErrTimeout means a bounded operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrDecode means a descriptor or claim payload is malformed.
	ErrDecode = errors.New("decode error")

	// ErrTransport means a peer was unreachable or the network failed.
	ErrTransport = errors.New("transport error")

	// ErrInvalidInput means a malformed locator, hash or argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrKeyFeeTooHigh means a claim's key fee exceeds the configured maximum.
	ErrKeyFeeTooHigh = errors.New("key fee above maximum allowed")
)

// IsTimeout reports whether err belongs to the timeout category.
// Context deadlines count as timeouts.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
