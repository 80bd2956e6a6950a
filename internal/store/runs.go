package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ImportRun is one row of the run history. Runs survive a Reset so the
// history spans imports.
type ImportRun struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string
	ArchivePath string
	Entries     int64
	Bytes       int64
	Error       string
}

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// CreateImportRun records the start of an ingestion run.
func (s *Store) CreateImportRun(ctx context.Context, id string, startedAt time.Time, archivePath string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO import_runs (id, started_at, status, archive_path)
		VALUES (?, ?, ?, ?)`, id, startedAt.Unix(), RunRunning, archivePath)
	if err != nil {
		return fmt.Errorf("creating import run: %w", err)
	}
	return nil
}

// FinishImportRun records a run's outcome.
func (s *Store) FinishImportRun(ctx context.Context, id, status string, finishedAt time.Time, entries, bytes int64, runErr string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE import_runs
		SET finished_at = ?, status = ?, entries = ?, bytes = ?, error = ?
		WHERE id = ?`, finishedAt.Unix(), status, entries, bytes, runErr, id)
	if err != nil {
		return fmt.Errorf("finishing import run: %w", err)
	}
	return nil
}

// ListImportRuns returns the most recent runs, newest first.
func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, finished_at, status,
			archive_path, entries, bytes, error
		FROM import_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing import runs: %w", err)
	}
	defer rows.Close()

	var runs []ImportRun
	for rows.Next() {
		var r ImportRun
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &started, &finished, &r.Status,
			&r.ArchivePath, &r.Entries, &r.Bytes, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning import run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		r.FinishedAt = timeFromNull(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SetSetting stores a key/value pair, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("storing setting %q: %w", key, err)
	}
	return nil
}

// GetSetting loads a setting. A missing key returns ("", nil).
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading setting %q: %w", key, err)
	}
	return value, nil
}
