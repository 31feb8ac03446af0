// Package sqlite provides a SQLite implementation of the storage interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"blobnet/internal/logger"
	"blobnet/internal/storage"
	"blobnet/internal/storage/migrate"

	_ "modernc.org/sqlite"
)

var log = logger.Default()

// SetLogger sets the package logger.
func SetLogger(l *logger.Logger) {
	log = l.With("component", "storage.sqlite")
}

const timeFormat = time.RFC3339Nano

// Store implements the storage.Store interface using SQLite.
type Store struct {
	db   *sql.DB
	path string

	streams *StreamRepository
	claims  *ClaimRepository
	files   *FileRepository

	mu     sync.RWMutex
	closed bool
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies
// pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: path}
	s.streams = &StreamRepository{store: s}
	s.claims = &ClaimRepository{store: s}
	s.files = &FileRepository{store: s}

	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("database opened", "path", path)
	return s, nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	mgr, err := migrate.NewSQLiteManager(s.db)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrMigrationFailed, err)
	}
	if err := mgr.Up(ctx); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrMigrationFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// Streams returns the stream repository.
func (s *Store) Streams() storage.StreamRepository {
	return s.streams
}

// Claims returns the claim repository.
func (s *Store) Claims() storage.ClaimRepository {
	return s.claims
}

// Files returns the file repository.
func (s *Store) Files() storage.FileRepository {
	return s.files
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Vacuum performs database maintenance.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

func (s *Store) exec(ctx context.Context, table, query string, args ...any) (sql.Result, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	log.Debug("exec", "table", table, "duration", time.Since(start), "error", err)
	return res, err
}

func (s *Store) query(ctx context.Context, table, query string, args ...any) (*sql.Rows, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	log.Debug("query", "table", table, "duration", time.Since(start), "error", err)
	return rows, err
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nowString() string {
	return time.Now().UTC().Format(timeFormat)
}
