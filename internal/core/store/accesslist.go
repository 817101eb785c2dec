package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shadowlens/shadowlens/internal/core"
)

// ReplaceAccessList atomically swaps the full contents of one list. The old
// entries and the new ones never coexist for readers.
func (s *Store) ReplaceAccessList(ctx context.Context, listType core.ListType, ips []string) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if !listType.Valid() {
		return fmt.Errorf("invalid list type: %s", listType)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin access list replace: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // rollback is a no-op after commit

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM access_entries WHERE list_type = ?`, string(listType)); err != nil {
		return fmt.Errorf("clear %s: %w", listType, err)
	}

	now := time.Now().Unix()
	for _, ip := range ips {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO access_entries (ip, list_type, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (ip, list_type) DO NOTHING`,
			ip, string(listType), now); err != nil {
			return fmt.Errorf("insert %s entry %s: %w", listType, ip, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit access list replace: %w", err)
	}
	return nil
}

// AddAccessEntry adds one IP to a list; re-adding an existing entry is a no-op.
func (s *Store) AddAccessEntry(ctx context.Context, listType core.ListType, ip string) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if !listType.Valid() {
		return fmt.Errorf("invalid list type: %s", listType)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO access_entries (ip, list_type, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (ip, list_type) DO NOTHING`,
		ip, string(listType), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("add %s entry %s: %w", listType, ip, err)
	}
	return nil
}

// RemoveAccessEntry removes one IP from a list. Missing entries are not an error.
func (s *Store) RemoveAccessEntry(ctx context.Context, listType core.ListType, ip string) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if !listType.Valid() {
		return fmt.Errorf("invalid list type: %s", listType)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM access_entries WHERE list_type = ? AND ip = ?`,
		string(listType), ip)
	if err != nil {
		return fmt.Errorf("remove %s entry %s: %w", listType, ip, err)
	}
	return nil
}

// ListAccessEntries returns a list's entries in reverse insertion order, so
// the most recently added IPs come first.
func (s *Store) ListAccessEntries(ctx context.Context, listType core.ListType) ([]core.AccessEntry, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("store is not initialized")
	}
	if !listType.Valid() {
		return nil, fmt.Errorf("invalid list type: %s", listType)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT ip, list_type, created_at
		FROM access_entries
		WHERE list_type = ?
		ORDER BY rowid DESC`,
		string(listType))
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", listType, err)
	}
	defer rows.Close() // nolint:errcheck // rows cleanup after read

	var entries []core.AccessEntry
	for rows.Next() {
		var (
			entry     core.AccessEntry
			createdAt int64
		)
		if err := rows.Scan(&entry.IP, &entry.ListType, &createdAt); err != nil {
			return nil, fmt.Errorf("scan %s entry: %w", listType, err)
		}
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s entries: %w", listType, err)
	}
	return entries, nil
}

// ContainsAccessEntry reports whether an IP is on the given list.
func (s *Store) ContainsAccessEntry(ctx context.Context, listType core.ListType, ip string) (bool, error) {
	if s == nil || s.DB == nil {
		return false, fmt.Errorf("store is not initialized")
	}
	if !listType.Valid() {
		return false, fmt.Errorf("invalid list type: %s", listType)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM access_entries WHERE list_type = ? AND ip = ?`,
		string(listType), ip,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check %s entry %s: %w", listType, ip, err)
	}
	return count > 0, nil
}
