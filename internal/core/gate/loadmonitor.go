package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/shadowlens/shadowlens/internal/metrics"
	"github.com/shadowlens/shadowlens/internal/notify"
)

// LoadMonitor counts inbound requests over a sliding window. Crossing the
// threshold flips a triggered flag once, forces the access gateway into
// lockdown, and schedules the flag to clear after one window.
type LoadMonitor struct {
	Window    time.Duration
	Threshold int

	// Lockdown is invoked exactly once per trigger.
	Lockdown func(ctx context.Context)

	Notifier *notify.Notifier
	Logger   *logging.Logger

	Clock func() time.Time
	After func(d time.Duration, f func())

	mu        sync.Mutex
	accesses  []time.Time
	triggered bool
}

// RecordAccess notes one inbound request and evaluates the threshold. This is
// the only method that mutates monitor state.
func (m *LoadMonitor) RecordAccess(ctx context.Context) {
	if m == nil {
		return
	}

	now := m.now()
	window := m.window()

	m.mu.Lock()
	m.accesses = append(m.accesses, now)

	cutoff := now.Add(-window)
	drop := 0
	for drop < len(m.accesses) && m.accesses[drop].Before(cutoff) {
		drop++
	}
	m.accesses = m.accesses[drop:]

	fire := len(m.accesses) > m.threshold() && !m.triggered
	if fire {
		m.triggered = true
	}
	count := len(m.accesses)
	m.mu.Unlock()

	if !fire {
		return
	}

	if m.Logger != nil {
		m.Logger.Warn("Load threshold exceeded, entering lockdown",
			zap.Int("count", count),
			zap.Duration("window", window))
	}
	m.Notifier.Send(
		fmt.Sprintf("load threshold exceeded: %d requests in %s, lockdown engaged", count, window),
		notify.TagLockdown)
	metrics.RecordGateEvent("lockdown")

	if m.Lockdown != nil {
		m.Lockdown(ctx)
	}

	m.schedule(window, func() {
		m.mu.Lock()
		m.triggered = false
		m.mu.Unlock()
	})
}

// OverThreshold is a pure read of the triggered flag; it never mutates state.
func (m *LoadMonitor) OverThreshold() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggered
}

func (m *LoadMonitor) schedule(d time.Duration, f func()) {
	if m.After != nil {
		m.After(d, f)
		return
	}
	time.AfterFunc(d, f)
}

func (m *LoadMonitor) window() time.Duration {
	if m != nil && m.Window > 0 {
		return m.Window
	}
	return 30 * time.Minute
}

func (m *LoadMonitor) threshold() int {
	if m != nil && m.Threshold > 0 {
		return m.Threshold
	}
	return 500
}

func (m *LoadMonitor) now() time.Time {
	if m != nil && m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}
