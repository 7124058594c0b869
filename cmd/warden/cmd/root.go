// Package cmd provides the CLI commands for Warden.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenlabs/warden/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - safety-caged autonomous CRM agent",
	Long: `Warden runs an AI planner against CRM client records inside a
deterministic safety cage. Every proposed action passes policy, risk,
rate-limit, early-warning, and truth-compliance guardrails before it can
execute; anything the cage is unsure about waits for human approval.

Quick start:
  1. Create a config file: warden.yaml
  2. Run one evaluation: warden run --workspace <id>

Configuration:
  Config is loaded from warden.yaml in the current directory,
  $HOME/.warden/, or /etc/warden/.

  Environment variables can override config values with the WARDEN_ prefix.
  Example: WARDEN_STORAGE_PATH=/var/lib/warden/warden.db

Commands:
  run         Run one proactive evaluation for a workspace
  pending     List actions awaiting approval
  approve     Approve and execute a pending action
  reject      Reject a pending action
  expire      Expire stale pending actions
  policies    Manage agent policies
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./warden.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
