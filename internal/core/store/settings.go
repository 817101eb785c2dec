package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shadowlens/shadowlens/internal/core"
)

// GetSettings reads the singleton enforcement flags.
func (s *Store) GetSettings(ctx context.Context) (core.AccessSettings, error) {
	if s == nil || s.DB == nil {
		return core.AccessSettings{}, fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var settings core.AccessSettings
	err := s.DB.QueryRowContext(ctx,
		`SELECT blacklist_enabled, whitelist_enabled FROM settings WHERE id = 1`,
	).Scan(&settings.BlacklistEnabled, &settings.WhitelistEnabled)
	if err != nil {
		return core.AccessSettings{}, fmt.Errorf("read settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings overwrites the singleton enforcement flags.
func (s *Store) UpdateSettings(ctx context.Context, settings core.AccessSettings) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO settings (id, blacklist_enabled, whitelist_enabled, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			blacklist_enabled = excluded.blacklist_enabled,
			whitelist_enabled = excluded.whitelist_enabled,
			updated_at = excluded.updated_at`,
		settings.BlacklistEnabled, settings.WhitelistEnabled, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}
