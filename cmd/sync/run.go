package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one sync pass over every budget and collection",
		Long: `Run one sync pass. Collections that fail are skipped and reported; their
cursors stay where they were so the next pass retries them.

Exits non-zero when any collection failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, err := NewDependencies(ctx, true)
			if err != nil {
				return err
			}
			defer deps.Close()

			return runPass(ctx, deps)
		},
	}
}

func runPass(ctx context.Context, deps *Dependencies) error {
	report, err := deps.Orchestrator.RunPass(ctx)
	if err != nil {
		return err
	}
	deps.Logger.Info().
		Str("run_id", report.RunID).
		Int("budgets", len(report.Budgets)).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("sync pass succeeded")
	return nil
}
