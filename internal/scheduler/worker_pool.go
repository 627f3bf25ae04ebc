package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("ynabmirror/scheduler")
	jobMeter           = otel.Meter("ynabmirror/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

var (
	ErrQueueFull  = errors.New("job queue full")
	ErrPoolClosed = errors.New("worker pool closed")
)

// WorkerPool runs submitted jobs on a fixed number of goroutines. Submit
// never blocks: when the queue is full the job is dropped.
type WorkerPool struct {
	workerCount int
	jobTimeout  time.Duration
	jobs        chan Job
	logger      zerolog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool creates a pool. jobTimeout of zero leaves jobs unbounded.
func NewWorkerPool(workerCount, queueSize int, jobTimeout time.Duration, logger zerolog.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
		jobs:        make(chan Job, queueSize),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.logger.Info().Int("workers", wp.workerCount).Msg("starting worker pool")

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processJob(id, job)
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job Job) {
	log := wp.logger.With().Int("worker", workerID).Str("job", job.Name()).Logger()

	ctx := wp.ctx
	if wp.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.jobTimeout)
		defer cancel()
	}

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.name", job.Name()),
		),
	)
	defer span.End()

	start := time.Now()
	err := job.Execute(ctx)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Dur("duration", elapsed).Msg("job failed")
	} else {
		log.Info().Dur("duration", elapsed).Msg("job completed")
	}

	attrs := metric.WithAttributes(attribute.String("job", job.Name()), attribute.String("status", status))
	jobTotal.Add(ctx, 1, attrs)
	jobDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// Submit queues a job. It returns ErrQueueFull when the job was dropped and
// ErrPoolClosed after shutdown began.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.jobs <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("job", job.Name())))
		wp.logger.Warn().Str("job", job.Name()).Msg("job queue full, dropping job")
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. After timeout the running jobs' context is cancelled and Shutdown
// waits for them to return.
func (wp *WorkerPool) Shutdown(timeout time.Duration) {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobs)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Info().Msg("worker pool stopped")
	case <-time.After(timeout):
		wp.logger.Warn().Dur("timeout", timeout).Msg("worker pool shutdown timed out, cancelling jobs")
		wp.cancel()
		<-done
	}
	wp.cancel()
}
