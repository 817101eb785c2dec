package metrics

import (
	"time"

	"github.com/shadowlens/shadowlens/internal/observability"
)

// RecordCheck records a completed account check and its duration.
func RecordCheck(outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		"checks_total",
		1,
		map[string]string{"outcome": outcome},
	)
	_ = observability.TelemetrySystem.Histogram(
		"check_duration_ms",
		duration,
		nil,
	)
}

// RecordRestriction records one observed restriction flag.
func RecordRestriction(flag string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		"restrictions_observed_total",
		1,
		map[string]string{"flag": flag},
	)
}

// RecordCredentialEvent records pool lifecycle events: selected, rate_limited,
// deleted, banned, exhausted.
func RecordCredentialEvent(event string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		"credential_events_total",
		1,
		map[string]string{"event": event},
	)
}

// RecordGateEvent records gate activity: pow_issued, pow_verified,
// pow_rejected, denied, lockdown.
func RecordGateEvent(event string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		"gate_events_total",
		1,
		map[string]string{"event": event},
	)
}

// SetPoolSize tracks how many credentials are currently eligible.
func SetPoolSize(eligible int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(
		"credential_pool_eligible",
		float64(eligible),
		nil,
	)
}
