package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var approveBy string

var approveCmd = &cobra.Command{
	Use:   "approve <action-id>",
	Short: "Approve and execute a pending action",
	Long: `Approve a pending action and execute it immediately.

Approval is the human override surface: no guardrails run here. The action
moves to approved_executed on success or execution_failed on failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, cleanup, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		a, err := app.actionLog.Approve(ctx, args[0], approveBy)
		if err != nil {
			return fmt.Errorf("approve action: %w", err)
		}
		printAction(a)
		return nil
	},
}

func init() {
	approveCmd.Flags().StringVar(&approveBy, "by", "", "approver identity (required)")
	_ = approveCmd.MarkFlagRequired("by")
	rootCmd.AddCommand(approveCmd)
}
