package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ynabmirror/internal/scheduler"
	"ynabmirror/internal/shared/config"
)

var errSchedulerDisabled = errors.New("scheduler disabled by SCHEDULER_ENABLED=false")

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run sync passes on a fixed interval until interrupted",
		Long: `Run a sync pass every SCHEDULER_INTERVAL (default 1h), and once at startup
unless SCHEDULER_RUN_ON_STARTUP=false. Failed passes are logged; the loop keeps
going. A tick that arrives while a pass is still queued is dropped.

Refuses to start when SCHEDULER_ENABLED=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, err := NewDependencies(ctx, true)
			if err != nil {
				return err
			}
			defer deps.Close()

			interval, _ := cmd.Flags().GetDuration("interval")
			cfg, err := scheduleConfig(deps.Config.Scheduler, interval)
			if err != nil {
				return err
			}

			sched, err := scheduler.NewScheduler(scheduler.Config{
				Interval:     cfg.Interval,
				WorkerCount:  1,
				QueueSize:    cfg.QueueSize,
				RunOnStartup: cfg.RunOnStartup,
				JobProvider:  scheduler.SyncPassProvider(deps.Orchestrator, deps.Logger),
			}, deps.Logger)
			if err != nil {
				return err
			}

			sched.Start()
			<-ctx.Done()
			sched.Shutdown(shutdownTimeout)
			return nil
		},
	}
	cmd.Flags().Duration("interval", 0, "override SCHEDULER_INTERVAL")
	return cmd
}

// scheduleConfig applies the --interval override to the configured
// scheduler.
func scheduleConfig(cfg config.SchedulerConfig, interval time.Duration) (config.SchedulerConfig, error) {
	if !cfg.Enabled {
		return cfg, errSchedulerDisabled
	}
	if interval > 0 {
		cfg.Interval = interval
	}
	return cfg, nil
}
