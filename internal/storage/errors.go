package storage

import (
	"errors"

	"blobnet/internal/domain"
)

// Storage errors
var (
	// ErrNotFound is returned when a row is not found.
	ErrNotFound = domain.ErrNotFound

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store is closed")

	// ErrMigrationFailed is returned when migrations fail.
	ErrMigrationFailed = errors.New("migration failed")
)

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
