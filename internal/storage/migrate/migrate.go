// Package migrate applies the embedded SQLite schema migrations.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql
var sqliteFS embed.FS

const (
	migrationsPath  = "migrations/sqlite"
	migrationsTable = "blobnet_schema_migrations"
)

// Manager handles database migrations.
type Manager struct {
	m         *migrate.Migrate
	checksums map[uint]string // version -> checksum of the up migration
	names     map[uint]string
}

// NewSQLiteManager creates a migration manager on an open database.
// The manager does not own db.
func NewSQLiteManager(db *sql.DB) (*Manager, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	sourceDriver, err := iofs.New(sqliteFS, migrationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	mgr := &Manager{
		m:         m,
		checksums: make(map[uint]string),
		names:     make(map[uint]string),
	}
	if err := mgr.calculateChecksums(); err != nil {
		return nil, fmt.Errorf("failed to calculate checksums: %w", err)
	}
	return mgr, nil
}

// calculateChecksums computes SHA-256 checksums for all up migrations.
func (m *Manager) calculateChecksums() error {
	entries, err := fs.ReadDir(sqliteFS, migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migration directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		content, err := fs.ReadFile(sqliteFS, migrationsPath+"/"+name)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		// "000001_initial_schema.up.sql" -> 1, "initial schema"
		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}

		m.checksums[uint(v)] = fmt.Sprintf("%x", sha256.Sum256(content))
		m.names[uint(v)] = strings.ReplaceAll(strings.TrimSuffix(rest, ".up.sql"), "_", " ")
	}

	return nil
}

// Up runs all pending migrations. A dirty state left by an interrupted
// run is forced back to the last clean version first.
func (m *Manager) Up(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	version, dirty, err := m.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		if err := m.m.Force(int(version) - 1); err != nil {
			return fmt.Errorf("failed to clean dirty migration state: %w", err)
		}
	}

	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Down rolls back one migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.m.Steps(-1); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

// Version returns the current migration version.
func (m *Manager) Version() (uint, bool, error) {
	return m.m.Version()
}

// MigrationInfo contains information about a migration.
type MigrationInfo struct {
	Version     uint
	Description string
	Applied     bool
	Checksum    string
}

// List returns information about all embedded migrations.
func (m *Manager) List() ([]MigrationInfo, error) {
	current, dirty, err := m.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	applied := err == nil

	migrations := make([]MigrationInfo, 0, len(m.checksums))
	for v, sum := range m.checksums {
		migrations = append(migrations, MigrationInfo{
			Version:     v,
			Description: m.names[v],
			Applied:     applied && !dirty && v <= current,
			Checksum:    sum,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
