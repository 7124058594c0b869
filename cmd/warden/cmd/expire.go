package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	expireWorkspace string
	expireOlderThan time.Duration
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire stale pending actions",
	Long: `Move pending actions older than the staleness window to expired.

Staleness is query-time state: nothing expires until this command (or a
scheduler invoking it) runs. The default window comes from
evaluation.staleness_window in the config.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		app, cleanup, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		olderThan := expireOlderThan
		if olderThan <= 0 {
			olderThan = app.cfg.StalenessWindow()
		}

		n, err := app.actionLog.ExpireStale(ctx, expireWorkspace, olderThan)
		if err != nil {
			return fmt.Errorf("expire stale actions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expired %d action(s) older than %s.\n", n, olderThan)
		return nil
	},
}

func init() {
	expireCmd.Flags().StringVar(&expireWorkspace, "workspace", "", "workspace to sweep (required)")
	expireCmd.Flags().DurationVar(&expireOlderThan, "older-than", 0, "staleness window override (e.g., 48h)")
	_ = expireCmd.MarkFlagRequired("workspace")
	rootCmd.AddCommand(expireCmd)
}
