package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ynabmirror/internal/infrastructure/postgres/listener"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print sync passes as they finish",
		Long: `Follow the database's sync_run_finished channel and print one line per
finished pass, whichever process ran it. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, err := NewDependencies(ctx, false)
			if err != nil {
				return err
			}
			defer deps.Close()

			out := cmd.OutOrStdout()
			l := listener.NewRunListener(
				deps.Config.Database.ConnectionString(),
				func(ev listener.RunFinished) { printRunFinished(out, ev) },
				deps.Logger,
			)
			l.Listen(ctx)
			return nil
		},
	}
}

func printRunFinished(out io.Writer, ev listener.RunFinished) {
	fmt.Fprintf(out, "%s  run %s %s: %d budgets, %d failures, took %s\n",
		ev.FinishedAt.UTC().Format(time.RFC3339),
		ev.RunID,
		ev.Status,
		ev.Budgets,
		ev.Failures,
		ev.FinishedAt.Sub(ev.StartedAt).Round(time.Second),
	)
}
