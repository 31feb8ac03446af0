package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestManager_UpDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	mgr, err := NewSQLiteManager(db)
	if err != nil {
		t.Fatalf("NewSQLiteManager() error = %v", err)
	}

	list, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) == 0 {
		t.Fatal("no embedded migrations")
	}
	if list[0].Version != 1 || list[0].Applied {
		t.Errorf("first migration = %+v", list[0])
	}
	if list[0].Description != "initial schema" {
		t.Errorf("description = %q", list[0].Description)
	}

	if err := mgr.Up(ctx); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if err := mgr.Up(ctx); err != nil {
		t.Fatalf("second Up() error = %v", err)
	}

	v, dirty, err := mgr.Version()
	if err != nil || dirty || v != uint(len(list)) {
		t.Errorf("Version() = %d, %v, %v", v, dirty, err)
	}

	if _, err := db.Exec(`SELECT COUNT(*) FROM files`); err != nil {
		t.Errorf("files table missing: %v", err)
	}

	if err := mgr.Down(ctx); err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if _, err := db.Exec(`SELECT COUNT(*) FROM files`); err == nil {
		t.Error("files table should be gone after Down()")
	}
}
