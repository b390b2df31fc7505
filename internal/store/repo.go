package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/checksum"
	"github.com/starford/agenda/internal/models"
)

// Repository is the persistence contract used by the application service.
type Repository interface {
	Upsert(a models.Appointment) error
	Delete(id string) error
	Get(id string) (*Row, error)
	All() ([]models.Appointment, error)
	Count() (int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Ping() error
	Close() error
}

var _ Repository = (*DB)(nil)

// Row is a stored appointment with bookkeeping columns.
type Row struct {
	models.Appointment
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PatientName string    `json:"patient_name"`
	Start       time.Time `json:"start"`
	Snippet     string    `json:"snippet"`
}

const timeLayout = time.RFC3339Nano

// Upsert inserts or replaces an appointment. New rows are appended after the
// last sequence number; updates keep their position.
func (db *DB) Upsert(a models.Appointment) error {
	if a.ID == "" {
		return fmt.Errorf("store: upsert: %w: empty id", apperr.ErrInvalidInput)
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO appointments (id, seq, title, patient_name, start_at, end_at, notes, color, checksum, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM appointments), ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title        = excluded.title,
			patient_name = excluded.patient_name,
			start_at     = excluded.start_at,
			end_at       = excluded.end_at,
			notes        = excluded.notes,
			color        = excluded.color,
			checksum     = excluded.checksum,
			updated_at   = excluded.updated_at
	`, a.ID, a.Title, a.PatientName,
		a.Start.UTC().Format(timeLayout), a.End.UTC().Format(timeLayout),
		a.Notes, a.Color, checksum.Appointment(a), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: upsert %s: %w", a.ID, err)
	}
	if err := ftsUpsert(tx, a.ID, a.Title, a.PatientName, a.Notes); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes an appointment. Deleting an unknown id is not an error.
func (db *DB) Delete(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM appointments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	ftsDelete(tx, id)
	return tx.Commit()
}

// Get returns a single row or apperr.ErrNotFound.
func (db *DB) Get(id string) (*Row, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, patient_name, start_at, end_at, notes, color, checksum, updated_at
		FROM appointments WHERE id = ?`, id)
	r, err := db.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return r, nil
}

// All returns every appointment in insertion order.
func (db *DB) All() ([]models.Appointment, error) {
	rows, err := db.conn.Query(`
		SELECT id, title, patient_name, start_at, end_at, notes, color, checksum, updated_at
		FROM appointments ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("store: all: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		r, err := db.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out = append(out, r.Appointment)
	}
	return out, rows.Err()
}

// Count returns the number of stored appointments.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM appointments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (db *DB) scan(s scanner) (*Row, error) {
	var (
		r          Row
		start, end string
	)
	if err := s.Scan(&r.ID, &r.Title, &r.PatientName, &start, &end, &r.Notes, &r.Color, &r.Checksum, &r.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if r.Start, err = time.Parse(timeLayout, start); err != nil {
		return nil, err
	}
	if r.End, err = time.Parse(timeLayout, end); err != nil {
		return nil, err
	}
	r.Start = r.Start.In(db.loc)
	r.End = r.End.In(db.loc)
	return &r, nil
}

func (db *DB) scanResults(rows *sql.Rows) ([]SearchResult, error) {
	out := []SearchResult{}
	for rows.Next() {
		var (
			r     SearchResult
			start string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.PatientName, &start, &r.Snippet); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, start)
		if err != nil {
			return nil, err
		}
		r.Start = t.In(db.loc)
		out = append(out, r)
	}
	return out, rows.Err()
}
