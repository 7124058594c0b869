package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var runWorkspace string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one proactive evaluation for a workspace",
	Long: `Run one proactive evaluation for a workspace.

Every client in the workspace cohort is evaluated sequentially: the planner
proposes actions, the guardrail cage admits or blocks them, and admitted
low-risk actions execute automatically while the rest wait for approval.

Examples:
  # Evaluate the demo workspace in dev mode
  WARDEN_DEV_MODE=true warden run --workspace demo

  # One run against the configured storage and planner
  warden run --workspace acme`,
	RunE: runEvaluation,
}

func init() {
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "workspace to evaluate (required)")
	_ = runCmd.MarkFlagRequired("workspace")
	rootCmd.AddCommand(runCmd)
}

func runEvaluation(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	// Optional Prometheus endpoint for long-lived scheduler wrappers.
	if addr := app.cfg.Metrics.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		defer srv.Close()
	}

	report, err := app.evaluation.RunEvaluation(ctx, runWorkspace)
	if err != nil {
		return fmt.Errorf("evaluation run: %w", err)
	}
	if err := app.auditor.Flush(ctx); err != nil {
		app.logger.Warn("audit flush failed", "error", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
