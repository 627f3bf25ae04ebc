// Command admin holds operator utilities for the mirror API.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ynabmirror/internal/shared/auth"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Management commands for the mirror API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	apikey := &cobra.Command{
		Use:   "apikey",
		Short: "Create API keys and their API_KEY_HASH values",
	}
	apikey.AddCommand(newGenerateCmd(), newHashCmd())
	root.AddCommand(apikey)
	return root
}

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a random key and print it with its hash",
		Example: `  admin apikey generate
  # then set API_KEY_HASH for the API and hand the key to clients`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GenerateAPIKey()
			if err != nil {
				return err
			}
			hash, err := auth.HashAPIKey(key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:          %s\n", key)
			fmt.Fprintf(out, "API_KEY_HASH: %s\n", hash)
			return nil
		},
	}
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Hash an existing key read from stdin",
		Example: `  echo -n "$KEY" | admin apikey hash`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := readKey(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashAPIKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// readKey returns the first line of r.
func readKey(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
