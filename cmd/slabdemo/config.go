package main

import (
	"errors"

	"github.com/kelseyhightower/envconfig"
)

// Config validation errors
var (
	ErrInvalidChunks    = errors.New("chunks must be positive")
	ErrInvalidWordBits  = errors.New("word_bits must be 0, 8, 16, 32 or 64")
	ErrInvalidLogFormat = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
)

// Config is read from SLAB_* environment variables.
type Config struct {
	Chunks      int    `envconfig:"CHUNKS" default:"64"`
	WordBits    int    `envconfig:"WORD_BITS" default:"0"`
	Placement   bool   `envconfig:"PLACEMENT" default:"false"`
	Arrow       bool   `envconfig:"ARROW" default:"true"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"console"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
}

// DefaultConfig returns the configuration used when no variables are set.
func DefaultConfig() Config {
	return Config{
		Chunks:    64,
		WordBits:  0,
		Arrow:     true,
		LogFormat: "console",
		LogLevel:  "info",
	}
}

// LoadConfig processes the environment under the given prefix and validates the result.
func LoadConfig(prefix string) (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.Chunks <= 0 {
		return ErrInvalidChunks
	}
	switch cfg.WordBits {
	case 0, 8, 16, 32, 64:
	default:
		return ErrInvalidWordBits
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}
