// Package config provides configuration types and loading for Warden.
package config

import "github.com/spf13/viper"

// Config is the top-level configuration for the warden binary.
type Config struct {
	// Storage selects and configures the backing stores.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Planner configures the proposal generator.
	Planner PlannerConfig `yaml:"planner" mapstructure:"planner"`

	// Evaluation tunes the proactive evaluation loop.
	Evaluation EvaluationConfig `yaml:"evaluation" mapstructure:"evaluation"`

	// Audit configures where decision audit records are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// LogLevel sets the minimum log level: debug, info, warn, error.
	// Defaults to "info". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// DevMode enables development defaults: memory storage, the static
	// planner, and verbose logging.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// StorageConfig selects the store implementations.
type StorageConfig struct {
	// Driver is "sqlite" (durable) or "memory" (dev/test only).
	Driver string `yaml:"driver" mapstructure:"driver" validate:"required,oneof=sqlite memory"`

	// Path is the SQLite database file. Required for the sqlite driver.
	Path string `yaml:"path" mapstructure:"path"`
}

// PlannerConfig configures proposal generation.
type PlannerConfig struct {
	// Provider is "openai" or "static" (heuristic, no network).
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required,oneof=openai static"`

	// Model is the OpenAI model name. Defaults to "gpt-4o-mini".
	Model string `yaml:"model" mapstructure:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never appears in config files.
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"`

	// Timeout bounds one planner call (e.g., "30s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`
}

// EvaluationConfig tunes the proactive loop.
type EvaluationConfig struct {
	// StalenessWindow is how long a pending action may wait before it is
	// considered expired (e.g., "72h").
	StalenessWindow string `yaml:"staleness_window" mapstructure:"staleness_window" validate:"omitempty"`

	// Dedupe suppresses identical proposals within one run. Defaults to
	// true; disable only when debugging a planner.
	Dedupe bool `yaml:"dedupe" mapstructure:"dedupe"`
}

// AuditConfig configures the decision audit trail.
type AuditConfig struct {
	// Output is "stdout" or "file://<absolute-dir>" for daily JSONL files.
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// RetentionDays is how long file audit logs are kept. Defaults to 30.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`

	// CacheSize is the number of recent records kept in memory for the
	// recent-decisions view. Defaults to 500.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" validate:"omitempty,min=1"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	// ListenAddr exposes /metrics when non-empty (e.g., "127.0.0.1:9090").
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr" validate:"omitempty,hostname_port"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "warden.db"
	}

	if c.Planner.Provider == "" {
		c.Planner.Provider = "static"
	}
	if c.Planner.Model == "" {
		c.Planner.Model = "gpt-4o-mini"
	}
	if c.Planner.APIKeyEnv == "" {
		c.Planner.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Planner.Timeout == "" {
		c.Planner.Timeout = "30s"
	}

	if c.Evaluation.StalenessWindow == "" {
		c.Evaluation.StalenessWindow = "72h"
	}
	// viper.IsSet distinguishes "not set" (zero value) from "explicitly false".
	if !viper.IsSet("evaluation.dedupe") {
		c.Evaluation.Dedupe = true
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 30
	}
	if c.Audit.CacheSize == 0 {
		c.Audit.CacheSize = 500
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// SetDevDefaults applies permissive defaults for development mode. These
// are applied after SetDefaults and only when DevMode is on.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if !viper.IsSet("storage.driver") {
		c.Storage.Driver = "memory"
		c.Storage.Path = ""
	}
	if !viper.IsSet("planner.provider") {
		c.Planner.Provider = "static"
	}
	c.LogLevel = "debug"
}
