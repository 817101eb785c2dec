package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shadowlens/shadowlens/internal/core"
)

// ErrCredentialNotFound is returned when a credential lookup misses.
var ErrCredentialNotFound = errors.New("credential not found")

// UpsertCredential inserts a credential or refreshes its account label when
// the token already exists. Existing usage and ban state is preserved.
func (s *Store) UpsertCredential(ctx context.Context, token, account string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, fmt.Errorf("store is not initialized")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("credential token is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().Unix()
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO credentials (token, account, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET account = excluded.account
		RETURNING id`,
		token, strings.TrimSpace(account), now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert credential: %w", err)
	}
	return id, nil
}

// ListCredentials returns all credentials ordered by id.
func (s *Store) ListCredentials(ctx context.Context) ([]core.Credential, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, token, account, last_used_at, reset_at, created_at
		FROM credentials
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close() // nolint:errcheck // rows cleanup after read

	var creds []core.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

// EligibleCredentials returns credentials whose reset time has passed,
// ordered by id so rotation slots map onto a stable sequence.
func (s *Store) EligibleCredentials(ctx context.Context, now time.Time) ([]core.Credential, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, token, account, last_used_at, reset_at, created_at
		FROM credentials
		WHERE reset_at <= ?
		ORDER BY id`,
		now.Unix())
	if err != nil {
		return nil, fmt.Errorf("list eligible credentials: %w", err)
	}
	defer rows.Close() // nolint:errcheck // rows cleanup after read

	var creds []core.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible credentials: %w", err)
	}
	return creds, nil
}

// TouchCredential records the moment a credential was handed out.
func (s *Store) TouchCredential(ctx context.Context, id int64, usedAt time.Time) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE credentials SET last_used_at = ? WHERE id = ?`,
		usedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("touch credential %d: %w", id, err)
	}
	return requireRowAffected(result, id)
}

// BanCredentialUntil pushes a credential's reset time forward. The reset time
// never moves backward, so a longer existing ban wins over a shorter one.
func (s *Store) BanCredentialUntil(ctx context.Context, id int64, resetAt time.Time) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE credentials SET reset_at = MAX(reset_at, ?) WHERE id = ?`,
		resetAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("ban credential %d: %w", id, err)
	}
	return requireRowAffected(result, id)
}

// DeleteCredential removes a credential permanently.
func (s *Store) DeleteCredential(ctx context.Context, id int64) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete credential %d: %w", id, err)
	}
	return requireRowAffected(result, id)
}

func requireRowAffected(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("credential %d: %w", id, ErrCredentialNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (core.Credential, error) {
	var (
		cred                           core.Credential
		lastUsedAt, resetAt, createdAt int64
	)
	if err := row.Scan(&cred.ID, &cred.Token, &cred.Account, &lastUsedAt, &resetAt, &createdAt); err != nil {
		return core.Credential{}, fmt.Errorf("scan credential: %w", err)
	}
	if lastUsedAt > 0 {
		cred.LastUsedAt = time.Unix(lastUsedAt, 0).UTC()
	}
	if resetAt > 0 {
		cred.ResetAt = time.Unix(resetAt, 0).UTC()
	}
	cred.CreatedAt = time.Unix(createdAt, 0).UTC()
	return cred, nil
}
