// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package journal keeps the catalog of completed recordings in SQLite. It is
// fed from the lifecycle bus and serves the recordings API; a journal failure
// never interferes with recording itself.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Record is one completed recording session.
type Record struct {
	ID              string    `json:"id"`
	Zone            string    `json:"zone"`
	Device          string    `json:"device"`
	OutputPath      string    `json:"output_path"`
	Codec           string    `json:"codec"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	SizeBytes       int64     `json:"size_bytes"`
	Outcome         string    `json:"outcome"`
	Detail          string    `json:"detail,omitempty"`
}

// Store provides SQLite persistence for the recording catalog.
type Store struct {
	db *sql.DB
}

// NewStore opens the catalog database and runs migrations. WAL mode and
// busy_timeout keep concurrent readers off the writer's back.
func NewStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		zone TEXT NOT NULL,
		device TEXT NOT NULL,
		output_path TEXT NOT NULL,
		codec TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		duration_seconds REAL NOT NULL DEFAULT 0,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL CHECK(outcome IN ('ok', 'degraded', 'failed')),
		detail TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_recordings_started ON recordings(started_at);
	CREATE INDEX IF NOT EXISTS idx_recordings_zone ON recordings(zone);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Insert stores one completed recording.
func (s *Store) Insert(ctx context.Context, r Record) error {
	query := `
	INSERT INTO recordings (id, zone, device, output_path, codec, started_at, ended_at, duration_seconds, size_bytes, outcome, detail)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Zone,
		r.Device,
		r.OutputPath,
		r.Codec,
		r.StartedAt.Format(time.RFC3339),
		r.EndedAt.Format(time.RFC3339),
		r.DurationSeconds,
		r.SizeBytes,
		r.Outcome,
		r.Detail,
	)
	return err
}

// List returns the newest recordings first, plus the total count for
// pagination.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Record, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	total, err := s.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := `
	SELECT id, zone, device, output_path, codec, started_at, ended_at, duration_seconds, size_bytes, outcome, detail
	FROM recordings
	ORDER BY started_at DESC, id DESC
	LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		var startedStr, endedStr string

		if err := rows.Scan(
			&r.ID,
			&r.Zone,
			&r.Device,
			&r.OutputPath,
			&r.Codec,
			&startedStr,
			&endedStr,
			&r.DurationSeconds,
			&r.SizeBytes,
			&r.Outcome,
			&r.Detail,
		); err != nil {
			return nil, 0, err
		}

		r.StartedAt, _ = time.Parse(time.RFC3339, startedStr)
		r.EndedAt, _ = time.Parse(time.RFC3339, endedStr)

		records = append(records, r)
	}

	return records, total, rows.Err()
}

// Count returns the number of cataloged recordings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&total)
	return total, err
}
