package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	rejectBy     string
	rejectReason string
)

var rejectCmd = &cobra.Command{
	Use:   "reject <action-id>",
	Short: "Reject a pending action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, cleanup, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		a, err := app.actionLog.Reject(ctx, args[0], rejectBy, rejectReason)
		if err != nil {
			return fmt.Errorf("reject action: %w", err)
		}
		printAction(a)
		return nil
	},
}

func init() {
	rejectCmd.Flags().StringVar(&rejectBy, "by", "", "reviewer identity (required)")
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "why the action was rejected")
	_ = rejectCmd.MarkFlagRequired("by")
	rootCmd.AddCommand(rejectCmd)
}
