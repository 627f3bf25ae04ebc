package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler submits the provider's jobs to a worker pool at a fixed
// interval, and optionally once at startup.
type Scheduler struct {
	workerPool   *WorkerPool
	interval     time.Duration
	runOnStartup bool
	jobProvider  func(context.Context) ([]Job, error)
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Config struct {
	Interval     time.Duration
	WorkerCount  int
	QueueSize    int
	JobTimeout   time.Duration
	RunOnStartup bool
	JobProvider  func(context.Context) ([]Job, error)
}

func NewScheduler(cfg Config, logger zerolog.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if cfg.JobProvider == nil {
		return nil, errors.New("scheduler needs a job provider")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		workerPool:   NewWorkerPool(cfg.WorkerCount, cfg.QueueSize, cfg.JobTimeout, logger),
		interval:     cfg.Interval,
		runOnStartup: cfg.RunOnStartup,
		jobProvider:  cfg.JobProvider,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start launches the worker pool and the tick loop.
func (s *Scheduler) Start() {
	s.workerPool.Start()

	if s.runOnStartup {
		s.runJobs()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().
		Dur("interval", s.interval).
		Bool("run_on_startup", s.runOnStartup).
		Msg("scheduler started")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runJobs()
		}
	}
}

// TriggerNow submits the provider's jobs immediately.
func (s *Scheduler) TriggerNow() {
	s.runJobs()
}

func (s *Scheduler) runJobs() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	jobs, err := s.jobProvider(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build jobs")
		return
	}

	submitted := 0
	for _, job := range jobs {
		if err := s.workerPool.Submit(job); err != nil {
			continue
		}
		submitted++
	}
	s.logger.Debug().Int("submitted", submitted).Int("jobs", len(jobs)).Msg("jobs submitted")
}

// Shutdown stops the tick loop, then drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.logger.Info().Msg("scheduler shutting down")
	s.cancel()
	s.wg.Wait()
	s.workerPool.Shutdown(timeout)
}
