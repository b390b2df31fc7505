// Package store persists the host's copy of the appointment collection in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS appointments (
	id           TEXT PRIMARY KEY,
	seq          INTEGER NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	patient_name TEXT NOT NULL DEFAULT '',
	start_at     TEXT NOT NULL,
	end_at       TEXT NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	color        TEXT NOT NULL DEFAULT '',
	checksum     TEXT NOT NULL DEFAULT '',
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_appointments_seq ON appointments(seq);
CREATE INDEX IF NOT EXISTS idx_appointments_start ON appointments(start_at);
`

// DB wraps a sql.DB with appointment-specific operations.
type DB struct {
	conn *sql.DB
	loc  *time.Location
}

// Option configures a DB.
type Option func(*DB)

// WithLocation sets the zone timestamps are returned in. Default time.Local.
func WithLocation(loc *time.Location) Option {
	return func(db *DB) {
		if loc != nil {
			db.loc = loc
		}
	}
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: init fts: %w", err)
	}
	db := &DB{conn: conn, loc: time.Local}
	for _, o := range opts {
		o(db)
	}
	return db, nil
}

// Ping checks the connection, for readiness probes.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
