package blob

import (
	"context"
	"errors"
	"time"

	"blobnet/internal/domain"
)

// ErrHashMismatch is returned when stored content does not hash to its ID.
var ErrHashMismatch = errors.New("blob content does not match hash")

// Store holds content-addressed blobs on local disk.
type Store interface {
	// Put stores a blob after verifying its content hash. Storing a blob
	// that is already present is a no-op.
	Put(ctx context.Context, id domain.PieceID, data []byte, meta *Metadata) error

	// Get returns the blob content, or domain.ErrNotFound.
	Get(ctx context.Context, id domain.PieceID) ([]byte, error)

	// Has reports whether the blob is held locally.
	Has(ctx context.Context, id domain.PieceID) (bool, error)

	// Delete removes a blob. Deleting a missing blob returns domain.ErrNotFound.
	Delete(ctx context.Context, id domain.PieceID) error

	// Metadata returns what is known about a held blob.
	Metadata(ctx context.Context, id domain.PieceID) (*Metadata, error)

	// List returns every held blob.
	List(ctx context.Context) ([]BlobInfo, error)

	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// Metadata is stored next to each blob.
type Metadata struct {
	Hash domain.PieceID `json:"hash"`

	// Size is the uncompressed length in bytes.
	Size int64 `json:"size"`

	// Host is the "host:port" of the peer the blob was downloaded from;
	// empty for locally created blobs.
	Host string `json:"host,omitempty"`

	CreatedAt    time.Time       `json:"created_at"`
	LastAccessed time.Time       `json:"last_accessed"`
	AccessCount  int64           `json:"access_count"`
	Compression  CompressionType `json:"compression"`
}

// CompressionType represents compression algorithm.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
)

// BlobInfo contains basic information about a blob.
type BlobInfo struct {
	Hash      domain.PieceID
	Size      int64
	Host      string
	CreatedAt time.Time
}

// Stats holds storage statistics.
type Stats struct {
	TotalBlobs int64
	TotalSize  int64
}
