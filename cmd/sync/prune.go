package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Hard-delete rows that have been flagged deleted for a while",
		Long: `Remove rows whose deleted flag was set longer ago than --older-than
(default SYNC_PRUNE_AFTER). Budgets themselves are never removed, and category
groups that still have categories are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			budgetIDs, _ := cmd.Flags().GetStringSlice("budget")

			deps, err := NewDependencies(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()

			window, err := pruneWindow(olderThan, deps.Config.Sync.PruneAfter)
			if err != nil {
				return err
			}
			cutoff := time.Now().Add(-window)

			removed, err := deps.Prune.Prune(cmd.Context(), cutoff, budgetIDs)
			if err != nil {
				return err
			}

			tables := make([]string, 0, len(removed))
			for table := range removed {
				tables = append(tables, table)
			}
			sort.Strings(tables)

			out := cmd.OutOrStdout()
			var total int64
			for _, table := range tables {
				fmt.Fprintf(out, "%-28s %d\n", table, removed[table])
				total += removed[table]
			}
			fmt.Fprintf(out, "removed %d rows deleted before %s\n", total, cutoff.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 0, "retention window, e.g. 720h (default SYNC_PRUNE_AFTER)")
	cmd.Flags().StringSlice("budget", nil, "limit pruning to these budget ids")
	return cmd
}

// pruneWindow picks the flag value over the configured default.
func pruneWindow(flag, configured time.Duration) (time.Duration, error) {
	window := configured
	if flag != 0 {
		window = flag
	}
	if window <= 0 {
		return 0, errors.New("--older-than must be positive")
	}
	return window, nil
}
