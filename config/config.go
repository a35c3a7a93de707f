// Package config loads the runtime configuration for the tenancy services.
//
// Values come from an optional YAML file plus TENANCY_-prefixed environment
// variables, with the environment taking precedence. Flags on the individual
// commands override both.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved configuration of a tenancy process.
type Config struct {
	// DatabaseURL is the Postgres DSN of the application database.
	DatabaseURL string `mapstructure:"database_url"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `mapstructure:"log_format"`

	// ReconcileWorkers bounds the per-sweep concurrency of the seed-pack
	// reconciler.
	ReconcileWorkers int `mapstructure:"reconcile_workers"`

	// SeedOnProvision applies the built-in seed packs right after
	// provisioning instead of waiting for the next sweep.
	SeedOnProvision bool `mapstructure:"seed_on_provision"`
}

// Load reads the configuration from the given file (optional, pass "" to rely
// on the environment only) and from TENANCY_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()

	// Every key needs a registered default for AutomaticEnv to surface it
	// through Unmarshal.
	v.SetDefault("database_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("reconcile_workers", 4)
	v.SetDefault("seed_on_provision", true)

	v.SetEnvPrefix("TENANCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("database_url is required (TENANCY_DATABASE_URL)")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	if c.ReconcileWorkers < 1 {
		return fmt.Errorf("reconcile_workers must be positive, got %d", c.ReconcileWorkers)
	}
	return nil
}

// SlogLevel translates LogLevel into a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}
