package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ynabmirror/internal/domain/budgetsync"
)

type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

var _ budgetsync.RunStore = (*RunRepository)(nil)

func (r *RunRepository) StartRun(ctx context.Context, run *budgetsync.Run) error {
	query := `
		INSERT INTO sync_runs (id, started_at, status)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.ExecContext(ctx, query, run.ID, run.StartedAt, string(run.Status)); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("run %s already recorded: %w", run.ID, err)
		}
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func (r *RunRepository) FinishRun(ctx context.Context, run *budgetsync.Run) error {
	failures, err := json.Marshal(nonNilFailures(run.Failures))
	if err != nil {
		return fmt.Errorf("failed to encode failures: %w", err)
	}

	query := `
		UPDATE sync_runs
		SET finished_at = $2, status = $3, budgets = $4, failures = $5
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, run.ID, run.FinishedAt, string(run.Status), run.Budgets, failures)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// Latest returns the most recently started run, or nil when none exists.
func (r *RunRepository) Latest(ctx context.Context) (*budgetsync.Run, error) {
	query := `
		SELECT id, started_at, finished_at, status, budgets, failures
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT 1
	`

	var run budgetsync.Run
	var finishedAt sql.NullTime
	var status string
	var failures []byte

	err := r.db.QueryRowContext(ctx, query).Scan(
		&run.ID, &run.StartedAt, &finishedAt, &status, &run.Budgets, &failures,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	run.Status = budgetsync.RunStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if err := json.Unmarshal(failures, &run.Failures); err != nil {
		return nil, fmt.Errorf("failed to decode failures: %w", err)
	}
	return &run, nil
}

func nonNilFailures(f []budgetsync.Failure) []budgetsync.Failure {
	if f == nil {
		return []budgetsync.Failure{}
	}
	return f
}
