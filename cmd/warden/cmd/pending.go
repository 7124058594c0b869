package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pendingWorkspace string

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List actions awaiting approval",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		app, cleanup, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		pending, err := app.actionLog.GetPendingActions(ctx, pendingWorkspace)
		if err != nil {
			return fmt.Errorf("list pending actions: %w", err)
		}
		if len(pending) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No actions awaiting approval.")
			return nil
		}
		for i := range pending {
			printAction(&pending[i])
		}
		return nil
	},
}

func init() {
	pendingCmd.Flags().StringVar(&pendingWorkspace, "workspace", "", "workspace to list (required)")
	_ = pendingCmd.MarkFlagRequired("workspace")
	rootCmd.AddCommand(pendingCmd)
}
