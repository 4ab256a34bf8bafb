package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var reconcileOlderThan time.Duration

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sweep stale pending orders once",
	Long:  `Move pending orders older than the cutoff to a terminal status and print the report as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		deps, err := initializeDependencies(ctx)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			deps.Close(closeCtx)
		}()

		olderThan := sweepOlderThan(cmd, deps.Config.Reconcile.OlderThan)

		report, err := deps.Sweep().ReconcilePending(ctx, olderThan)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		return report.Err()
	},
}

// sweepOlderThan prefers an explicitly set --older-than, zero included.
func sweepOlderThan(cmd *cobra.Command, configured time.Duration) time.Duration {
	if cmd.Flags().Changed("older-than") {
		return reconcileOlderThan
	}
	return configured
}

func init() {
	reconcileCmd.Flags().DurationVar(&reconcileOlderThan, "older-than", 0, "minimum pending age (overrides config)")
	rootCmd.AddCommand(reconcileCmd)
}
