package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenlabs/warden/internal/config"
)

var (
	policiesFile string
	policiesBy   string
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Manage agent policies",
}

var policiesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import policies from a YAML seed file",
	Long: `Import policies from a YAML seed file into the configured store.

Existing rows for the same (workspace, client) scope are replaced. Seed
file shape:

  policies:
    - workspace_id: acme
      enabled: true
      allowed_actions: [add_tag, create_note, send_followup]
      auto_execute: true
      auto_execute_max_risk: low
      max_actions_per_day: 10
      require_approval_above_score: 70
      respect_early_warnings: true
      pause_on_high_severity_warning: true`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		app, cleanup, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		policies, err := config.LoadPolicySeeds(policiesFile, policiesBy)
		if err != nil {
			return err
		}
		for i := range policies {
			if err := app.policies.Save(ctx, &policies[i]); err != nil {
				return fmt.Errorf("save policy for workspace %s client %q: %w",
					policies[i].WorkspaceID, policies[i].ClientID, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d policy row(s).\n", len(policies))
		return nil
	},
}

var policiesListWorkspace string

var policiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policy rows for a workspace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		app, cleanup, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		rows, err := app.policies.ListWorkspace(ctx, policiesListWorkspace)
		if err != nil {
			return fmt.Errorf("list policies: %w", err)
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No policy rows; the system default applies.")
			return nil
		}
		for _, p := range rows {
			scope := "workspace default"
			if p.IsClientSpecific() {
				scope = "client " + p.ClientID
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"%-24s enabled=%t auto=%t max_risk=%s per_day=%d kinds=%d rules=%d\n",
				scope, p.Enabled, p.AutoExecute, p.AutoExecuteMaxRisk,
				p.MaxActionsPerDay, len(p.AllowedActions), len(p.GuardRules))
		}
		return nil
	},
}

func init() {
	policiesImportCmd.Flags().StringVar(&policiesFile, "file", "", "YAML seed file (required)")
	policiesImportCmd.Flags().StringVar(&policiesBy, "by", "", "operator identity recorded as updated_by")
	_ = policiesImportCmd.MarkFlagRequired("file")

	policiesListCmd.Flags().StringVar(&policiesListWorkspace, "workspace", "", "workspace to list (required)")
	_ = policiesListCmd.MarkFlagRequired("workspace")

	policiesCmd.AddCommand(policiesImportCmd, policiesListCmd)
	rootCmd.AddCommand(policiesCmd)
}
