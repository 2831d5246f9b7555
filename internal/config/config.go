// Package config handles configuration loading for maestro.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestration engine.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Router    RouterConfig    `mapstructure:"router"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Store     StoreConfig     `mapstructure:"store"`
}

// EngineConfig holds scheduler and retry settings.
type EngineConfig struct {
	// MaxRetryAttempts bounds dispatches per unit for transient failures.
	MaxRetryAttempts int `mapstructure:"max_retry_attempts"`
	// ParallelExecutionLimit bounds simultaneously running units.
	ParallelExecutionLimit int `mapstructure:"parallel_execution_limit"`
	// SessionTimeout cancels a session's remaining units when exceeded. Zero disables it.
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	// RetryBackoffBase is the first retry delay; doubles per attempt.
	RetryBackoffBase time.Duration `mapstructure:"retry_backoff_base"`
	// RetryBackoffMax caps the backoff delay.
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max"`
}

// RouterConfig holds intent classification settings.
type RouterConfig struct {
	// ConfidenceFloor is the minimum classifier confidence to accept a capability.
	ConfidenceFloor float64 `mapstructure:"confidence_floor"`
	// BlockedSources lists source identifiers whose requests are ignored
	// before intent routing begins.
	BlockedSources []string `mapstructure:"blocked_sources"`
}

// AnthropicConfig holds settings for the optional Claude-backed classifier.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// StoreConfig holds session store settings.
type StoreConfig struct {
	// Path is the sqlite database file. Empty selects the default data path.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.maestro.yaml in current directory or a parent)
// 3. User config (~/.config/maestro/config.yaml)
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

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
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

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the config to the user config path, creating it if needed.
func Save(cfg *Config) error {
	v := viper.New()
	v.Set("engine.max_retry_attempts", cfg.Engine.MaxRetryAttempts)
	v.Set("engine.parallel_execution_limit", cfg.Engine.ParallelExecutionLimit)
	v.Set("engine.session_timeout", cfg.Engine.SessionTimeout.String())
	v.Set("engine.retry_backoff_base", cfg.Engine.RetryBackoffBase.String())
	v.Set("engine.retry_backoff_max", cfg.Engine.RetryBackoffMax.String())
	v.Set("router.confidence_floor", cfg.Router.ConfidenceFloor)
	v.Set("router.blocked_sources", cfg.Router.BlockedSources)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("store.path", cfg.Store.Path)

	path := GetUserConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// DefaultStorePath returns the default sqlite database path.
func DefaultStorePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "maestro", "maestro.db")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.max_retry_attempts", 3)
	v.SetDefault("engine.parallel_execution_limit", 5)
	v.SetDefault("engine.session_timeout", "0s")
	v.SetDefault("engine.retry_backoff_base", "500ms")
	v.SetDefault("engine.retry_backoff_max", "30s")

	v.SetDefault("router.confidence_floor", 0.6)
	v.SetDefault("router.blocked_sources", []string{})

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("store.path", "")
}

// getUserConfigDir returns the XDG config directory for maestro.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "maestro")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "maestro")
	}
	return filepath.Join(home, ".config", "maestro")
}

// findProjectConfig searches for .maestro.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".maestro.yaml")
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

// Default returns a Config with built-in default values.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxRetryAttempts:       3,
			ParallelExecutionLimit: 5,
			SessionTimeout:         0,
			RetryBackoffBase:       500 * time.Millisecond,
			RetryBackoffMax:        30 * time.Second,
		},
		Router: RouterConfig{
			ConfidenceFloor: 0.6,
			BlockedSources:  nil,
		},
	}
}
