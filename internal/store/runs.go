package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ErrRunNotFound is returned when a run id has no tracking row.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the listing view of one pipeline run.
type RunSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RunDetail adds the consolidated report persisted when a run finished.
type RunDetail struct {
	RunSummary
	Report json.RawMessage `json:"report,omitempty"`
}

// RunError is one recorded failure for a run.
type RunError struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Store) initRunTables() error {
	runs := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT,
		report TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`
	runErrors := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		error_message TEXT,
		created_at DATETIME
	);`
	if _, err := s.db.Exec(runs); err != nil {
		return fmt.Errorf("%w: init runs: %v", ErrUnavailable, err)
	}
	if _, err := s.db.Exec(runErrors); err != nil {
		return fmt.Errorf("%w: init run_errors: %v", ErrUnavailable, err)
	}
	return nil
}

// SaveRun registers a new pipeline run in pending state.
func (s *Store) SaveRun(ctx context.Context, runID string) error {
	now := time.Now().UTC()
	query, args, err := sq.Insert("runs").
		Columns("id", "status", "created_at", "updated_at").
		Values(runID, "pending", now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build save run: %v", ErrUnavailable, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: save run: %v", ErrUnavailable, err)
	}
	return nil
}

// UpdateRunStatus moves a run through pending -> running -> completed/failed.
func (s *Store) UpdateRunStatus(ctx context.Context, runID, status string) error {
	query, args, err := sq.Update("runs").
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": runID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build update run: %v", ErrUnavailable, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: update run: %v", ErrUnavailable, err)
	}
	return nil
}

// FinishRun records the terminal status together with the consolidated report.
func (s *Store) FinishRun(ctx context.Context, runID, status string, report interface{}) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	query, args, err := sq.Update("runs").
		Set("status", status).
		Set("report", string(raw)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": runID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build finish run: %v", ErrUnavailable, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: finish run: %v", ErrUnavailable, err)
	}
	return nil
}

// SaveRunError records one failure for a run.
func (s *Store) SaveRunError(ctx context.Context, runID string, runErr error) error {
	if runErr == nil {
		return nil
	}
	query, args, err := sq.Insert("run_errors").
		Columns("run_id", "error_message", "created_at").
		Values(runID, runErr.Error(), time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build save run error: %v", ErrUnavailable, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: save run error: %v", ErrUnavailable, err)
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	query, args, err := sq.Select("id", "status", "created_at", "updated_at").
		From("runs").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build list runs: %v", ErrUnavailable, err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan run: %v", ErrUnavailable, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate runs: %v", ErrUnavailable, err)
	}
	return runs, nil
}

// GetRun fetches one run with its report, if any.
func (s *Store) GetRun(ctx context.Context, runID string) (RunDetail, error) {
	query, args, err := sq.Select("id", "status", "report", "created_at", "updated_at").
		From("runs").
		Where(sq.Eq{"id": runID}).
		ToSql()
	if err != nil {
		return RunDetail{}, fmt.Errorf("%w: build get run: %v", ErrUnavailable, err)
	}

	var d RunDetail
	var report sql.NullString
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&d.ID, &d.Status, &report, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return RunDetail{}, ErrRunNotFound
	}
	if err != nil {
		return RunDetail{}, fmt.Errorf("%w: get run: %v", ErrUnavailable, err)
	}
	if report.Valid && report.String != "" {
		d.Report = json.RawMessage(report.String)
	}
	return d, nil
}

// ListRunErrors returns the recorded failures for a run, oldest first.
func (s *Store) ListRunErrors(ctx context.Context, runID string) ([]RunError, error) {
	query, args, err := sq.Select("error_message", "created_at").
		From("run_errors").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build list run errors: %v", ErrUnavailable, err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list run errors: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []RunError
	for rows.Next() {
		var e RunError
		if err := rows.Scan(&e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan run error: %v", ErrUnavailable, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate run errors: %v", ErrUnavailable, err)
	}
	return out, nil
}
