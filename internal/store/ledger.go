package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/pmgate/internal/canonical"
)

// Attempt is one recorded stage attempt.
type Attempt struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	OutputDir    string    `json:"output_dir"`
	Stage        string    `json:"stage"`
	Seq          int       `json:"seq"`
	Status       string    `json:"status"`
	FailureCount int       `json:"failure_count"`
	Error        string    `json:"error,omitempty"`
	NextSteps    []string  `json:"next_steps"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// RecordAttempt appends a finished attempt and returns its assigned
// per-stage sequence number. The run row is created on first use.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) (int, error) {
	steps := a.NextSteps
	if steps == nil {
		steps = []string{}
	}
	stepsJSON, err := canonical.Marshal(steps)
	if err != nil {
		return 0, fmt.Errorf("record attempt: marshal next steps: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record attempt: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, output_dir, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, a.RunID, a.OutputDir, formatTime(a.StartedAt))
	if err != nil {
		return 0, fmt.Errorf("record attempt: insert run: %w", err)
	}

	var seq int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM attempts WHERE run_id = ? AND stage = ?
	`, a.RunID, a.Stage).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("record attempt: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attempts
		(run_id, stage, seq, status, failure_count, error, next_steps, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.RunID,
		a.Stage,
		seq,
		a.Status,
		a.FailureCount,
		a.Error,
		string(stepsJSON),
		formatTime(a.StartedAt),
		formatTime(a.FinishedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record attempt: commit: %w", err)
	}
	return seq, nil
}

// RunAttempts returns all attempts of a run in append order.
// Returns an empty slice (not nil) if the run is unknown.
func (s *Store) RunAttempts(ctx context.Context, runID string) ([]Attempt, error) {
	return s.queryAttempts(ctx, `
		SELECT a.id, a.run_id, r.output_dir, a.stage, a.seq, a.status, a.failure_count,
		       a.error, a.next_steps, a.started_at, a.finished_at
		FROM attempts a
		JOIN runs r ON a.run_id = r.id
		WHERE a.run_id = ?
		ORDER BY a.id ASC
	`, runID)
}

// StageAttempts returns every attempt of a stage across runs in append order.
func (s *Store) StageAttempts(ctx context.Context, stage string) ([]Attempt, error) {
	return s.queryAttempts(ctx, `
		SELECT a.id, a.run_id, r.output_dir, a.stage, a.seq, a.status, a.failure_count,
		       a.error, a.next_steps, a.started_at, a.finished_at
		FROM attempts a
		JOIN runs r ON a.run_id = r.id
		WHERE a.stage = ?
		ORDER BY a.id ASC
	`, stage)
}

// Runs returns run ids in order of first recorded attempt.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id FROM attempts GROUP BY run_id ORDER BY MIN(id) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *Store) queryAttempts(ctx context.Context, query string, args ...any) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

func scanAttempt(rows *sql.Rows) (Attempt, error) {
	var (
		a                 Attempt
		steps             string
		started, finished string
	)
	err := rows.Scan(&a.ID, &a.RunID, &a.OutputDir, &a.Stage, &a.Seq, &a.Status, &a.FailureCount,
		&a.Error, &steps, &started, &finished)
	if err != nil {
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	if err := json.Unmarshal([]byte(steps), &a.NextSteps); err != nil {
		return Attempt{}, fmt.Errorf("unmarshal next steps: %w", err)
	}
	if a.StartedAt, err = parseTime(started); err != nil {
		return Attempt{}, err
	}
	if a.FinishedAt, err = parseTime(finished); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ledger time %q: %w", s, err)
	}
	return t, nil
}
