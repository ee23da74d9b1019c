package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pitt-crc/starfish-api-client/starfish"
)

// EnvPrefix prefixes environment overrides, e.g. STARFISH_SERVER_PASSWORD.
const EnvPrefix = "STARFISH"

// Load loads the configuration from file and environment. With an explicit
// configPath the file must exist; otherwise the standard locations are
// searched and a missing file leaves defaults plus environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".starfish"))
		}

		// Check /etc
		v.AddConfigPath("/etc/starfish/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Every key gets one, even
// an empty one, so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.url", "")
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.verify_tls", true)

	// Client defaults
	v.SetDefault("client.timeout", starfish.DefaultTimeout)
	v.SetDefault("client.max_retries", starfish.DefaultMaxRetries)
	v.SetDefault("client.backoff_base", starfish.DefaultBackoffBase)
	v.SetDefault("client.backoff_max", starfish.DefaultBackoffMax)
	v.SetDefault("client.jitter", starfish.DefaultJitter)
	v.SetDefault("client.mode", starfish.ModeBlocking.String())
	v.SetDefault("client.page_size", starfish.DefaultPageSize)

	// Query defaults
	v.SetDefault("query.poll_interval", starfish.DefaultPollInterval)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}

	if cfg.Server.APIKey == "" && (cfg.Server.Username == "" || cfg.Server.Password == "") {
		return fmt.Errorf("server.api_key or server.username and server.password must be set")
	}

	if _, err := starfish.ParseMode(cfg.Client.Mode); err != nil {
		return fmt.Errorf("invalid client.mode: %s (must be 'blocking' or 'non-blocking')", cfg.Client.Mode)
	}

	if cfg.Client.MaxRetries < 0 {
		return fmt.Errorf("client.max_retries must not be negative")
	}

	if cfg.Client.Jitter < 0 || cfg.Client.Jitter >= 1 {
		return fmt.Errorf("client.jitter must be in [0, 1), got %v", cfg.Client.Jitter)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
