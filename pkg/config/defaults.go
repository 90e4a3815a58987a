package config

import (
	"strings"
	"time"
)

// Default values applied to unset fields.
const (
	DefaultPort            = 80
	DefaultShutdownTimeout = 15 * time.Second
	DefaultWeightUnit      = "kg"
	DefaultDatabaseURL     = "/var/lib/ariahub/ariahub.db"
)

// GetDefaultConfig returns a fully populated default configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)

	if cfg.Database.URL == "" {
		cfg.Database.URL = DefaultDatabaseURL
	}
	if cfg.WeightUnit == "" {
		cfg.WeightUnit = DefaultWeightUnit
	}
	cfg.WeightUnit = strings.ToLower(cfg.WeightUnit)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	// WARNING is the documented spelling for some deployments; the logger
	// treats it as WARN, so normalize before validation does.
	if cfg.Level == "WARNING" {
		cfg.Level = "WARN"
	}

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}
