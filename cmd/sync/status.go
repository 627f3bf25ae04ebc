package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ynabmirror/internal/domain/budget"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored cursors per budget and the latest sync pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx := cmd.Context()
			budgets, err := deps.Budgets.List(ctx, budget.Page{Limit: budget.MaxLimit})
			if err != nil {
				return err
			}

			statuses := make([]*budget.SyncStatus, 0, len(budgets))
			for _, b := range budgets {
				s, err := deps.Budgets.SyncStatus(ctx, b.ID)
				if err != nil {
					return err
				}
				statuses = append(statuses, s)
			}
			return printStatus(cmd.OutOrStdout(), budgets, statuses)
		},
	}
}

func printStatus(out io.Writer, budgets []*budget.Budget, statuses []*budget.SyncStatus) error {
	if len(budgets) == 0 {
		_, err := fmt.Fprintln(out, "no budgets mirrored yet")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUDGET\tCOLLECTION\tSERVER KNOWLEDGE\tUPDATED")
	for i, b := range budgets {
		if len(statuses[i].Cursors) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\tnever\n", b.Name)
			continue
		}
		for _, c := range statuses[i].Cursors {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.Name, c.Collection, c.Value, c.UpdatedAt.UTC().Format(time.RFC3339))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	// The latest run is shared across budgets.
	if run := statuses[0].LastRun; run != nil {
		fmt.Fprintf(out, "\nlast run %s: %s, started %s, %d failures\n",
			run.ID, run.Status, run.StartedAt.UTC().Format(time.RFC3339), len(run.Failures))
		for _, f := range run.Failures {
			fmt.Fprintf(out, "  %s/%s: %s\n", f.BudgetID, f.Collection, f.Message)
		}
	}
	return nil
}
