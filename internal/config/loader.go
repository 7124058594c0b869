package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, warden.yaml/.yml is searched in the
// standard locations. The search requires an explicit YAML extension so the
// warden binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file in any standard location. ReadInConfig will
		// return ConfigFileNotFoundError, which callers handle gracefully.
		viper.SetConfigName("warden")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: WARDEN_STORAGE_DRIVER etc.
	viper.SetEnvPrefix("WARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for warden.yaml or warden.yml.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".warden"),
		"/etc/warden",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "warden"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys so environment variables can
// override them. Example: WARDEN_STORAGE_PATH overrides storage.path.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("storage.driver")
	_ = viper.BindEnv("storage.path")

	_ = viper.BindEnv("planner.provider")
	_ = viper.BindEnv("planner.model")
	_ = viper.BindEnv("planner.api_key_env")
	_ = viper.BindEnv("planner.timeout")

	_ = viper.BindEnv("evaluation.staleness_window")
	_ = viper.BindEnv("evaluation.dedupe")

	_ = viper.BindEnv("audit.output")
	_ = viper.BindEnv("audit.retention_days")
	_ = viper.BindEnv("audit.cache_size")

	_ = viper.BindEnv("metrics.listen_addr")

	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates. A missing config file is not an error: the
// defaults plus environment variables form a complete configuration.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded configuration file, or an
// empty string when running on env vars and defaults alone.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
