package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"maestro/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify maestro configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/maestro/config.yaml
Project-specific overrides can be placed in .maestro.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("engine.max_retry_attempts: %d\n", cfg.Engine.MaxRetryAttempts)
	fmt.Printf("engine.parallel_execution_limit: %d\n", cfg.Engine.ParallelExecutionLimit)
	fmt.Printf("engine.session_timeout: %s\n", cfg.Engine.SessionTimeout)
	fmt.Printf("engine.retry_backoff_base: %s\n", cfg.Engine.RetryBackoffBase)
	fmt.Printf("engine.retry_backoff_max: %s\n", cfg.Engine.RetryBackoffMax)
	fmt.Printf("router.confidence_floor: %.2f\n", cfg.Router.ConfidenceFloor)
	fmt.Printf("router.blocked_sources: %s\n", strings.Join(cfg.Router.BlockedSources, ","))
	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("store.path: %s\n", storePathDisplay(cfg))
}

func storePathDisplay(cfg *config.Config) string {
	if cfg.Store.Path == "" {
		return config.DefaultStorePath() + " (default)"
	}
	return cfg.Store.Path
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "engine.max_retry_attempts":
		return strconv.Itoa(cfg.Engine.MaxRetryAttempts), nil
	case "engine.parallel_execution_limit":
		return strconv.Itoa(cfg.Engine.ParallelExecutionLimit), nil
	case "engine.session_timeout":
		return cfg.Engine.SessionTimeout.String(), nil
	case "engine.retry_backoff_base":
		return cfg.Engine.RetryBackoffBase.String(), nil
	case "engine.retry_backoff_max":
		return cfg.Engine.RetryBackoffMax.String(), nil
	case "router.confidence_floor":
		return strconv.FormatFloat(cfg.Router.ConfidenceFloor, 'f', 2, 64), nil
	case "router.blocked_sources":
		return strings.Join(cfg.Router.BlockedSources, ","), nil
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "store.path":
		return storePathDisplay(cfg), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "engine.max_retry_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_retry_attempts: %w", err)
		}
		cfg.Engine.MaxRetryAttempts = n
	case "engine.parallel_execution_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for parallel_execution_limit: %w", err)
		}
		cfg.Engine.ParallelExecutionLimit = n
	case "engine.session_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for session_timeout: %w", err)
		}
		cfg.Engine.SessionTimeout = d
	case "engine.retry_backoff_base":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for retry_backoff_base: %w", err)
		}
		cfg.Engine.RetryBackoffBase = d
	case "engine.retry_backoff_max":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for retry_backoff_max: %w", err)
		}
		cfg.Engine.RetryBackoffMax = d
	case "router.confidence_floor":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for confidence_floor: %w", err)
		}
		cfg.Router.ConfidenceFloor = f
	case "router.blocked_sources":
		if value == "" {
			cfg.Router.BlockedSources = nil
		} else {
			cfg.Router.BlockedSources = strings.Split(value, ",")
		}
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "store.path":
		cfg.Store.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
