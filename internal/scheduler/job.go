package scheduler

import "context"

// Job is a unit of work executed by the worker pool.
type Job interface {
	// Execute runs the job. ctx is cancelled on shutdown.
	Execute(ctx context.Context) error

	// Name identifies the job in logs, spans and metrics.
	Name() string
}
