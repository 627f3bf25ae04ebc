// Command sync mirrors YNAB budgets into Postgres.
package main

import (
	"fmt"
	"os"
	"time"
)

// shutdownTimeout bounds how long a running pass may take to stop.
const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
