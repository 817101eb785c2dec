// Package engine holds the credential pool, rate-limit bookkeeping, and the
// account-check orchestrator.
package engine

import (
	"sync"
	"time"
)

// RateLimitTracker caches the most recent remaining-quota and reset-time
// snapshot per upstream endpoint. State is process-local; an endpoint with no
// recorded snapshot is assumed unconstrained.
type RateLimitTracker struct {
	Clock func() time.Time

	mu      sync.Mutex
	entries map[string]quotaSnapshot
}

type quotaSnapshot struct {
	remaining int
	resetAt   time.Time
}

// NewRateLimitTracker returns an empty tracker.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{entries: make(map[string]quotaSnapshot)}
}

// Update overwrites the tracked state for an endpoint from the latest
// response headers. Reset times arrive as epoch milliseconds.
func (t *RateLimitTracker) Update(endpoint string, remaining int, resetEpochMs int64) {
	if t == nil || endpoint == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries == nil {
		t.entries = make(map[string]quotaSnapshot)
	}
	t.entries[endpoint] = quotaSnapshot{
		remaining: remaining,
		resetAt:   time.UnixMilli(resetEpochMs),
	}
}

// CanProceed reports whether a call touching the given endpoints would be
// admitted. It returns false only if some endpoint is exhausted and its reset
// time has not passed; retryAt is then the latest reset time among the
// exhausted endpoints.
func (t *RateLimitTracker) CanProceed(endpoints ...string) (bool, time.Time) {
	if t == nil {
		return true, time.Time{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var retryAt time.Time
	for _, endpoint := range endpoints {
		snapshot, ok := t.entries[endpoint]
		if !ok {
			continue
		}
		if snapshot.remaining > 0 || !now.Before(snapshot.resetAt) {
			continue
		}
		if snapshot.resetAt.After(retryAt) {
			retryAt = snapshot.resetAt
		}
	}
	if retryAt.IsZero() {
		return true, time.Time{}
	}
	return false, retryAt
}

func (t *RateLimitTracker) now() time.Time {
	if t != nil && t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}
