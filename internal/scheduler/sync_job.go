package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"ynabmirror/internal/domain/budgetsync"
)

// PassRunner runs one full sync pass.
type PassRunner interface {
	RunPass(ctx context.Context) (*budgetsync.Report, error)
}

// SyncPassJob runs a sync pass as a scheduled job. A pass with failed
// collections is reported as an error; the next tick simply tries again.
type SyncPassJob struct {
	runner PassRunner
	logger zerolog.Logger
}

func NewSyncPassJob(runner PassRunner, logger zerolog.Logger) *SyncPassJob {
	return &SyncPassJob{runner: runner, logger: logger}
}

func (j *SyncPassJob) Name() string { return "sync-pass" }

func (j *SyncPassJob) Execute(ctx context.Context) error {
	report, err := j.runner.RunPass(ctx)

	var runFailed *budgetsync.RunFailed
	switch {
	case errors.As(err, &runFailed):
		j.logger.Warn().
			Str("run_id", runFailed.RunID).
			Int("failures", len(runFailed.Failures)).
			Msg("sync pass finished with failures")
		return err
	case err != nil:
		return fmt.Errorf("sync pass failed: %w", err)
	}

	j.logger.Info().
		Str("run_id", report.RunID).
		Int("budgets", len(report.Budgets)).
		Int("collections", len(report.Results)).
		Msg("sync pass succeeded")
	return nil
}

// SyncPassProvider returns a job provider yielding one pass per tick.
func SyncPassProvider(runner PassRunner, logger zerolog.Logger) func(context.Context) ([]Job, error) {
	job := NewSyncPassJob(runner, logger)
	return func(context.Context) ([]Job, error) {
		return []Job{job}, nil
	}
}
