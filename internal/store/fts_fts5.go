//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS appointments_fts USING fts5(
			id UNINDEXED,
			title,
			patient_name,
			notes,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id string, title, patient, notes string) error {
	_, _ = tx.Exec(`DELETE FROM appointments_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO appointments_fts (id, title, patient_name, notes) VALUES (?, ?, ?, ?)`,
		id, title, patient, notes)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM appointments_fts WHERE id = ?`, id)
}

// Search performs an FTS5 full-text search over title, patient and notes.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT a.id,
		       a.title,
		       a.patient_name,
		       a.start_at,
		       snippet(appointments_fts, 3, '<b>', '</b>', '...', 32)
		FROM appointments_fts
		JOIN appointments a ON a.id = appointments_fts.id
		WHERE appointments_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()
	return db.scanResults(rows)
}
