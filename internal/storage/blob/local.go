package blob

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"blobnet/internal/domain"
	"blobnet/internal/logger"
)

// LocalConfig configures a LocalStore.
type LocalConfig struct {
	Path             string
	Compression      CompressionType
	CompressionLevel int
}

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	cfg    LocalConfig
	logger *logger.Logger

	mu    sync.RWMutex
	stats Stats

	wg sync.WaitGroup // tracks pending access-time updates
}

// NewLocalStore creates the blob directory and scans it for statistics.
func NewLocalStore(cfg LocalConfig, log *logger.Logger) (*LocalStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("blob directory is required")
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionNone
	}
	if err := os.MkdirAll(cfg.Path, 0700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	if log == nil {
		log = logger.Default()
	}

	s := &LocalStore{cfg: cfg, logger: log.Component("blobstore")}
	if err := s.computeStats(); err != nil {
		s.logger.Warn("failed to compute initial blob stats", "error", err)
	}
	return s, nil
}

// Put stores a blob after verifying that data hashes to id.
func (s *LocalStore) Put(ctx context.Context, id domain.PieceID, data []byte, meta *Metadata) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if got := HashBytes(data); got != id {
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, id, got)
	}

	blobPath := s.blobPath(id)
	if _, err := os.Stat(blobPath); err == nil {
		return nil
	}

	encoded, err := compress(data, s.cfg.Compression, s.cfg.CompressionLevel)
	if err != nil {
		return fmt.Errorf("failed to compress blob: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(blobPath), 0700); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	tempPath := blobPath + ".tmp"
	if err := os.WriteFile(tempPath, encoded, 0600); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tempPath, blobPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename blob: %w", err)
	}

	m := Metadata{}
	if meta != nil {
		m.Host = meta.Host
	}
	m.Hash = id
	m.Size = int64(len(data))
	m.CreatedAt = time.Now().UTC()
	m.LastAccessed = m.CreatedAt
	m.Compression = s.cfg.Compression

	if err := s.writeMetadata(id, &m); err != nil {
		s.logger.Warn("failed to write blob metadata", "hash", id, "error", err)
	}

	s.mu.Lock()
	s.stats.TotalBlobs++
	s.stats.TotalSize += m.Size
	s.mu.Unlock()

	return nil
}

// Get returns the blob content.
func (s *LocalStore) Get(ctx context.Context, id domain.PieceID) ([]byte, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.blobPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	algorithm := s.cfg.Compression
	if meta, err := s.readMetadata(id); err == nil {
		algorithm = meta.Compression
	}

	data, err := decompress(raw, algorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress blob %s: %w", id, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.touch(id)
	}()

	return data, nil
}

// Has reports whether the blob file exists.
func (s *LocalStore) Has(ctx context.Context, id domain.PieceID) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.blobPath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete removes the blob and its metadata.
func (s *LocalStore) Delete(ctx context.Context, id domain.PieceID) error {
	if err := id.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var size int64
	if meta, err := s.readMetadata(id); err == nil {
		size = meta.Size
	}

	if err := os.Remove(s.blobPath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: blob %s", domain.ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	os.Remove(s.metadataPath(id))

	s.stats.TotalBlobs--
	s.stats.TotalSize -= size
	return nil
}

// Metadata returns the metadata written when the blob was stored.
func (s *LocalStore) Metadata(ctx context.Context, id domain.PieceID) (*Metadata, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return s.readMetadata(id)
}

// List returns every held blob.
func (s *LocalStore) List(ctx context.Context) ([]BlobInfo, error) {
	var blobs []BlobInfo

	err := filepath.WalkDir(s.cfg.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return ctx.Err()
		}
		name := d.Name()
		if !domain.IsValidHash(name) {
			return nil
		}

		id := domain.PieceID(name)
		info := BlobInfo{Hash: id}
		if meta, err := s.readMetadata(id); err == nil {
			info.Size = meta.Size
			info.Host = meta.Host
			info.CreatedAt = meta.CreatedAt
		}
		blobs = append(blobs, info)
		return nil
	})

	return blobs, err
}

// Stats returns storage statistics.
func (s *LocalStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := s.stats
	return &stats, nil
}

// Close waits for pending access-time updates.
func (s *LocalStore) Close() error {
	s.wg.Wait()
	return nil
}

// HashBytes returns the piece ID of data.
func HashBytes(data []byte) domain.PieceID {
	sum := sha512.Sum384(data)
	return domain.PieceID(hex.EncodeToString(sum[:]))
}

func (s *LocalStore) blobPath(id domain.PieceID) string {
	// Structure: <path>/<hash[0:2]>/<hash>
	h := id.String()
	return filepath.Join(s.cfg.Path, h[0:2], h)
}

func (s *LocalStore) metadataPath(id domain.PieceID) string {
	return s.blobPath(id) + ".meta"
}

func (s *LocalStore) readMetadata(id domain.PieceID) (*Metadata, error) {
	data, err := os.ReadFile(s.metadataPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: metadata for %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &meta, nil
}

func (s *LocalStore) writeMetadata(id domain.PieceID, meta *Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	path := s.metadataPath(id)
	if err := os.WriteFile(path+".tmp", data, 0600); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func (s *LocalStore) touch(id domain.PieceID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMetadata(id)
	if err != nil {
		return
	}
	meta.LastAccessed = time.Now().UTC()
	meta.AccessCount++
	if err := s.writeMetadata(id, meta); err != nil {
		s.logger.Debug("failed to update access time", "hash", id, "error", err)
	}
}

func (s *LocalStore) computeStats() error {
	var stats Stats
	err := filepath.WalkDir(s.cfg.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".meta") || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		stats.TotalBlobs++
		if meta, err := s.readMetadata(domain.PieceID(d.Name())); err == nil {
			stats.TotalSize += meta.Size
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	return nil
}
