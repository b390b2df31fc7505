//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the appointments table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ string, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id, title, patient_name, start_at, substr(notes, 1, 200)
		FROM appointments
		WHERE title LIKE ? OR patient_name LIKE ? OR notes LIKE ?
		ORDER BY start_at
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()
	return db.scanResults(rows)
}
