package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sync",
		Short: "Mirror YNAB budgets into Postgres",
		Long: `Mirror YNAB budgets into a local Postgres database using delta requests.

Configuration comes from the environment, optionally seeded from a .env file:
  YNAB_ACCESS_TOKEN   personal access token (run, schedule)
  DATABASE_URL        Postgres connection string, or the DB_* parts
  YNAB_BUDGET_IDS     comma-separated allow-list; empty syncs every budget`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newScheduleCmd(), newPruneCmd(), newStatusCmd(), newWatchCmd())
	return root
}
