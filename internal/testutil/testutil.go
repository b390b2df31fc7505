// Package testutil provides shared test helpers for databases and export directories.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/agenda/internal/storage"
	"github.com/starford/agenda/internal/store"
)

// TestDB opens a SQLite store in a per-test directory. The database and its
// WAL files disappear with the directory.
func TestDB(t *testing.T, opts ...store.Option) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "agenda-test.db"), opts...)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestExports creates a temporary export directory with a storage.Provider.
func TestExports(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("open test exports: %v", err)
	}
	return dir, fs
}
