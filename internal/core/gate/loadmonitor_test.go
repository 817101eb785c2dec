package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAccessTriggersOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockdowns := 0
	var clear func()

	m := &LoadMonitor{
		Window:    30 * time.Minute,
		Threshold: 500,
		Lockdown:  func(context.Context) { lockdowns++ },
		Clock:     func() time.Time { return now },
		After:     func(_ time.Duration, f func()) { clear = f },
	}

	for i := 0; i < 500; i++ {
		m.RecordAccess(context.Background())
	}
	require.False(t, m.OverThreshold())

	// The 501st access within the window flips the state exactly once.
	m.RecordAccess(context.Background())
	require.True(t, m.OverThreshold())
	require.Equal(t, 1, lockdowns)

	// Continuing traffic while triggered does not fire again.
	for i := 0; i < 100; i++ {
		m.RecordAccess(context.Background())
	}
	require.Equal(t, 1, lockdowns)

	// The scheduled reset clears the flag after one window.
	require.NotNil(t, clear)
	clear()
	require.False(t, m.OverThreshold())
}

func TestRecordAccessPrunesOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockdowns := 0

	m := &LoadMonitor{
		Window:    30 * time.Minute,
		Threshold: 10,
		Lockdown:  func(context.Context) { lockdowns++ },
		Clock:     func() time.Time { return now },
		After:     func(time.Duration, func()) {},
	}

	// Ten accesses, then the clock moves past the window before the next
	// burst: the stale entries no longer count toward the threshold.
	for i := 0; i < 10; i++ {
		m.RecordAccess(context.Background())
	}
	now = now.Add(31 * time.Minute)
	for i := 0; i < 10; i++ {
		m.RecordAccess(context.Background())
	}
	require.Zero(t, lockdowns)

	m.RecordAccess(context.Background())
	require.Equal(t, 1, lockdowns)
}

func TestOverThresholdIsPureRead(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockdowns := 0

	m := &LoadMonitor{
		Window:    time.Minute,
		Threshold: 1,
		Lockdown:  func(context.Context) { lockdowns++ },
		Clock:     func() time.Time { return now },
		After:     func(time.Duration, func()) {},
	}
	m.RecordAccess(context.Background())

	// Reads never trip the threshold, however many there are.
	for i := 0; i < 50; i++ {
		require.False(t, m.OverThreshold())
	}
	require.Zero(t, lockdowns)
}

func TestNilMonitorIsInert(t *testing.T) {
	var m *LoadMonitor
	m.RecordAccess(context.Background())
	require.False(t, m.OverThreshold())
}
