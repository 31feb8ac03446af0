// Package storage defines the metadata repositories backing downloads:
// streams parsed from descriptors, resolved claims, and managed files.
package storage

import (
	"context"
	"io"

	"blobnet/internal/domain"
)

// Store provides access to all repositories.
type Store interface {
	io.Closer

	Streams() StreamRepository
	Claims() ClaimRepository
	Files() FileRepository

	// Ping checks database connectivity.
	Ping(ctx context.Context) error
}

// StreamRepository persists parsed stream descriptors.
type StreamRepository interface {
	// Save records a descriptor and its piece list. Saving the same
	// descriptor twice is a no-op.
	Save(ctx context.Context, sd *domain.StreamDescriptor) error

	// StreamHashForDescriptor returns the stream hash declared by a
	// descriptor, or ErrNotFound.
	StreamHashForDescriptor(ctx context.Context, id domain.ContentDescriptorID) (string, error)

	// Pieces returns the content pieces of a stream in order, excluding
	// the terminator.
	Pieces(ctx context.Context, streamHash string) ([]domain.PieceInfo, error)

	// Get rebuilds the descriptor for a stream hash.
	Get(ctx context.Context, streamHash string) (*domain.StreamDescriptor, error)

	// Delete removes the stream, its piece list and any file rows for it.
	Delete(ctx context.Context, id domain.ContentDescriptorID) error
}

// ClaimRepository persists claims seen during resolution.
type ClaimRepository interface {
	// Save upserts claims keyed by outpoint.
	Save(ctx context.Context, claims ...*domain.ResolvedClaim) error

	// Get returns a claim by outpoint, or ErrNotFound.
	Get(ctx context.Context, outpoint string) (*domain.ResolvedClaim, error)

	// ForDescriptor returns the most recent claim whose value points at
	// the descriptor, or ErrNotFound.
	ForDescriptor(ctx context.Context, id domain.ContentDescriptorID) (*domain.ResolvedClaim, error)
}

// FileRepository persists downloaded files.
type FileRepository interface {
	// Save inserts or replaces the file row for the artifact's descriptor
	// hash and returns its row id.
	Save(ctx context.Context, a *domain.Artifact) (int64, error)

	// Find returns the first file matching key, or ErrNotFound.
	Find(ctx context.Context, key domain.FileKey) (*domain.Artifact, error)

	// List returns every file matching all keys.
	List(ctx context.Context, keys ...domain.FileKey) ([]*domain.Artifact, error)

	// UpdateStatus records a new session state for the file.
	UpdateStatus(ctx context.Context, id domain.ContentDescriptorID, status domain.SessionState, completed bool) error

	// UpdateProgress records bytes and pieces written so far.
	UpdateProgress(ctx context.Context, id domain.ContentDescriptorID, writtenBytes int64, piecesCompleted int) error

	// Delete removes the file row.
	Delete(ctx context.Context, id domain.ContentDescriptorID) error
}
