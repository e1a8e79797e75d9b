package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
)

// CreateRun records the start of a run
func (s *Store) CreateRun(run *domain.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}

	query := `
		INSERT INTO runs (id, status, total, started_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, run.ID, run.Status, run.Total, run.StartedAt.UTC())
	return err
}

// RecordAttempt stores the outcome of one task within a round
func (s *Store) RecordAttempt(attempt *domain.AttemptRecord) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO attempts (
			run_id, round, name, raw_id, attempts, outcome,
			error_kind, error, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		attempt.RunID, attempt.Round, attempt.Name, attempt.RawID, attempt.Attempts,
		string(attempt.Outcome), nullString(string(attempt.ErrorKind)), nullString(attempt.Error),
		attempt.DurationMs, attempt.CreatedAt.UTC())
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	attempt.ID = id
	return nil
}

// FinishRun stores the final counts of a run
func (s *Store) FinishRun(run *domain.Run) error {
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}

	query := `
		UPDATE runs
		SET status = ?, total = ?, rounds = ?, skipped = ?, succeeded = ?, failed = ?,
			finished_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		run.Status, run.Total, run.Rounds, run.Skipped, run.Succeeded, run.Failed,
		finished, run.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(id string) (*domain.Run, error) {
	query := `
		SELECT id, status, total, rounds, skipped, succeeded, failed, started_at, finished_at
		FROM runs
		WHERE id = ?
	`

	return scanRun(s.db.QueryRow(query, id))
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, status, total, rounds, skipped, succeeded, failed, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListAttempts returns the attempts recorded for a run in insertion order
func (s *Store) ListAttempts(runID string) ([]*domain.AttemptRecord, error) {
	query := `
		SELECT id, run_id, round, name, raw_id, attempts, outcome,
			   error_kind, error, duration_ms, created_at
		FROM attempts
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.AttemptRecord
	for rows.Next() {
		rec := &domain.AttemptRecord{}
		var outcome string
		var kind, msg sql.NullString

		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Round, &rec.Name, &rec.RawID, &rec.Attempts,
			&outcome, &kind, &msg, &rec.DurationMs, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		rec.Outcome = domain.Outcome(outcome)
		if kind.Valid {
			rec.ErrorKind = domain.ErrorKind(kind.String)
		}
		if msg.Valid {
			rec.Error = msg.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CleanupOldRuns removes runs started before now-olderThan with their attempts
func (s *Store) CleanupOldRuns(olderThan time.Duration) (int, error) {
	threshold := time.Now().Add(-olderThan).UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM attempts
		WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
	`, threshold); err != nil {
		return 0, err
	}

	result, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, threshold)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(affected), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	run := &domain.Run{}
	var finished sql.NullTime

	err := row.Scan(
		&run.ID, &run.Status, &run.Total, &run.Rounds,
		&run.Skipped, &run.Succeeded, &run.Failed,
		&run.StartedAt, &finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
