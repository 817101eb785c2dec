package store

import (
	"context"
	"fmt"
)

// schemaStatements are applied in order on every startup. Each statement is
// idempotent so re-running the list against an existing database is safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT NOT NULL UNIQUE,
		account TEXT NOT NULL DEFAULT '',
		last_used_at INTEGER NOT NULL DEFAULT 0,
		reset_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credentials_reset_at ON credentials(reset_at)`,

	`CREATE TABLE IF NOT EXISTS access_entries (
		ip TEXT NOT NULL,
		list_type TEXT NOT NULL CHECK (list_type IN ('blacklist', 'whitelist')),
		created_at INTEGER NOT NULL,
		PRIMARY KEY (ip, list_type)
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		blacklist_enabled INTEGER NOT NULL DEFAULT 1,
		whitelist_enabled INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS check_history (
		session_id TEXT PRIMARY KEY,
		screen_name TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_check_history_screen_name ON check_history(screen_name, created_at DESC)`,
}

// Migrate ensures the database schema is present and seeds the settings row.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}

	// The settings row is a singleton; insert defaults only if absent.
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO settings (id, blacklist_enabled, whitelist_enabled, updated_at)
		VALUES (1, 1, 0, strftime('%s', 'now'))
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("seed settings row: %w", err)
	}
	return nil
}
