package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// Load decodes the current viper state into a Config, validates it, and
// stores it as the process-wide configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("build config decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = cfg
	configMu.Unlock()

	return cfg, nil
}

// GetConfig returns the last loaded configuration, or nil before Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Gate.PowBaseDifficulty < 1 {
		return fmt.Errorf("pow base difficulty must be at least 1, got %d", c.Gate.PowBaseDifficulty)
	}
	if c.Gate.PowHighDifficulty < c.Gate.PowBaseDifficulty {
		return fmt.Errorf("pow high difficulty %d below base %d",
			c.Gate.PowHighDifficulty, c.Gate.PowBaseDifficulty)
	}
	if c.Gate.LoadThreshold < 1 {
		return fmt.Errorf("load threshold must be positive, got %d", c.Gate.LoadThreshold)
	}
	if c.Gate.DenialDelayMax < c.Gate.DenialDelayMin {
		return fmt.Errorf("denial delay range inverted: min %s > max %s",
			c.Gate.DenialDelayMin, c.Gate.DenialDelayMax)
	}
	if c.Platform.AvailabilityBatch < 1 {
		return fmt.Errorf("availability batch must be positive, got %d", c.Platform.AvailabilityBatch)
	}
	return nil
}

// DefaultStorePath returns the default on-disk database location.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "shadowlens.db"
	}
	return filepath.Join(home, ".local", "share", "shadowlens", "shadowlens.db")
}
