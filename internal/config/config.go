// Package config handles configuration loading for Vesper. It supports XDG
// config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Vesper.
type Config struct {
	Resolver     ResolverConfig     `mapstructure:"resolver"`
	Supervisor   SupervisorConfig   `mapstructure:"supervisor"`
	Session      SessionConfig      `mapstructure:"session"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities"`
}

// ResolverConfig holds intent resolution settings.
type ResolverConfig struct {
	// MinConfidence is the threshold below which intents are bounced back
	// for clarification.
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// SupervisorConfig holds plan execution policy.
type SupervisorConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	CancelGrace time.Duration `mapstructure:"cancel_grace"`
	PlanBudget  time.Duration `mapstructure:"plan_budget"`
	EventBuffer int           `mapstructure:"event_buffer"`
}

// SessionConfig holds conversation state settings.
type SessionConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxContext int           `mapstructure:"max_context"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// CapabilitiesConfig holds agent roster settings.
type CapabilitiesConfig struct {
	// ManifestPath is the YAML file declaring the capability roster.
	ManifestPath string `mapstructure:"manifest_path"`
	// ReminderDBPath is where the reminder agent keeps its sqlite database.
	ReminderDBPath string `mapstructure:"reminder_db_path"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (VESPER_*)
// 2. Project config (.vesper.yaml in current directory or parent)
// 3. User config (~/.config/vesper/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("VESPER")
	v.AutomaticEnv()
	v.BindEnv("logging.level", "VESPER_LOG_LEVEL")
	v.BindEnv("capabilities.manifest_path", "VESPER_CAPABILITIES")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Capabilities.ReminderDBPath = os.ExpandEnv(cfg.Capabilities.ReminderDBPath)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Capabilities.ReminderDBPath = os.ExpandEnv(cfg.Capabilities.ReminderDBPath)
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("resolver.min_confidence", 0.55)

	v.SetDefault("supervisor.max_retries", 2)
	v.SetDefault("supervisor.backoff_base", "200ms")
	v.SetDefault("supervisor.backoff_cap", "2s")
	v.SetDefault("supervisor.cancel_grace", "2s")
	v.SetDefault("supervisor.plan_budget", "8s")
	v.SetDefault("supervisor.event_buffer", 64)

	v.SetDefault("session.ttl", "10m")
	v.SetDefault("session.max_context", 16)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("capabilities.manifest_path", "configs/capabilities.yaml")
	v.SetDefault("capabilities.reminder_db_path", filepath.Join(getUserConfigDir(), "reminders.db"))
}

// getUserConfigDir returns the XDG config directory for Vesper.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vesper")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "vesper")
	}
	return filepath.Join(home, ".config", "vesper")
}

// findProjectConfig searches for .vesper.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".vesper.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			MinConfidence: 0.55,
		},
		Supervisor: SupervisorConfig{
			MaxRetries:  2,
			BackoffBase: 200 * time.Millisecond,
			BackoffCap:  2 * time.Second,
			CancelGrace: 2 * time.Second,
			PlanBudget:  8 * time.Second,
			EventBuffer: 64,
		},
		Session: SessionConfig{
			TTL:        10 * time.Minute,
			MaxContext: 16,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
		},
		Capabilities: CapabilitiesConfig{
			ManifestPath:   "configs/capabilities.yaml",
			ReminderDBPath: filepath.Join(getUserConfigDir(), "reminders.db"),
		},
	}
}
