// Package main is the buildhub server: build snapshots, mode assignment and
// diffs over a REST API backed by Postgres.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nivostack/buildhub/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:           "buildhub",
		Short:         "Build snapshot and diff service",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newMigrateCmd(), newTokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
