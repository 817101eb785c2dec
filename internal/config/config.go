// Package config provides centralized configuration management for
// ShadowLens. Values are layered: built-in defaults, an optional YAML config
// file, then SHADOWLENS_* environment variables and flags via viper.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Platform PlatformConfig `mapstructure:"platform"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Gate     GateConfig     `mapstructure:"gate"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// PlatformConfig points the checker at the upstream platform API.
type PlatformConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	StatusBaseURL  string        `mapstructure:"status_base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// TimelineTarget is how many tweets a timeline check collects before
	// stopping; AvailabilityBatch bounds concurrent availability probes.
	TimelineTarget    int `mapstructure:"timeline_target"`
	AvailabilityBatch int `mapstructure:"availability_batch"`
	Retries           int `mapstructure:"retries"`
}

// PoolConfig tunes credential rotation and banning.
type PoolConfig struct {
	SlotWidth      time.Duration `mapstructure:"slot_width"`
	OperationalBan time.Duration `mapstructure:"operational_ban"`
}

// GateConfig tunes the proof-of-work gate, load monitor and access gateway.
type GateConfig struct {
	PowBaseDifficulty int           `mapstructure:"pow_base_difficulty"`
	PowHighDifficulty int           `mapstructure:"pow_high_difficulty"`
	PowExpiry         time.Duration `mapstructure:"pow_expiry"`

	LoadWindow    time.Duration `mapstructure:"load_window"`
	LoadThreshold int           `mapstructure:"load_threshold"`

	DenialDelayMin time.Duration `mapstructure:"denial_delay_min"`
	DenialDelayMax time.Duration `mapstructure:"denial_delay_max"`
}

// NotifyConfig configures the outbound alert webhook.
type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
