package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Query   QueryConfig   `mapstructure:"query"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds Starfish API connection details
type ServerConfig struct {
	URL       string `mapstructure:"url"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	APIKey    string `mapstructure:"api_key"`
	VerifyTLS bool   `mapstructure:"verify_tls"`
}

// ClientConfig tunes the request executor
type ClientConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
	Jitter      float64       `mapstructure:"jitter"`
	Mode        string        `mapstructure:"mode"`
	PageSize    int           `mapstructure:"page_size"`
}

// QueryConfig contains async query settings
type QueryConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// FilterConfig holds named row filter expressions, usable with --preset
type FilterConfig map[string]string

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
