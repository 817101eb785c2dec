package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shadowlens/shadowlens/internal/core"
)

// ErrHistoryNotFound is returned when a session lookup misses.
var ErrHistoryNotFound = errors.New("check history not found")

// SaveCheckResult persists a completed check keyed by its session ID.
func (s *Store) SaveCheckResult(ctx context.Context, result core.CheckResult) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if result.SessionID == "" {
		return fmt.Errorf("check result session id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode check result: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO check_history (session_id, screen_name, result_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			screen_name = excluded.screen_name,
			result_json = excluded.result_json`,
		result.SessionID, result.ScreenName, string(body), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save check result %s: %w", result.SessionID, err)
	}
	return nil
}

// GetCheckResult loads a persisted check by session ID.
func (s *Store) GetCheckResult(ctx context.Context, sessionID string) (core.CheckResult, error) {
	if s == nil || s.DB == nil {
		return core.CheckResult{}, fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var body string
	err := s.DB.QueryRowContext(ctx,
		`SELECT result_json FROM check_history WHERE session_id = ?`,
		sessionID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CheckResult{}, fmt.Errorf("session %s: %w", sessionID, ErrHistoryNotFound)
	}
	if err != nil {
		return core.CheckResult{}, fmt.Errorf("load check result %s: %w", sessionID, err)
	}

	var result core.CheckResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return core.CheckResult{}, fmt.Errorf("decode check result %s: %w", sessionID, err)
	}
	return result, nil
}

// RecentCheckResults returns the most recent checks for a screen name,
// newest first, capped at limit.
func (s *Store) RecentCheckResults(ctx context.Context, screenName string, limit int) ([]core.CheckResult, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("store is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT result_json
		FROM check_history
		WHERE screen_name = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		screenName, limit)
	if err != nil {
		return nil, fmt.Errorf("list check results for %s: %w", screenName, err)
	}
	defer rows.Close() // nolint:errcheck // rows cleanup after read

	var results []core.CheckResult
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan check result: %w", err)
		}
		var result core.CheckResult
		if err := json.Unmarshal([]byte(body), &result); err != nil {
			return nil, fmt.Errorf("decode check result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check results: %w", err)
	}
	return results, nil
}

// PruneCheckHistory deletes checks older than the cutoff and reports how
// many rows were removed.
func (s *Store) PruneCheckHistory(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, fmt.Errorf("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx,
		`DELETE FROM check_history WHERE created_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune check history: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read pruned row count: %w", err)
	}
	return removed, nil
}
