package gate

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/metrics"
	"github.com/shadowlens/shadowlens/internal/notify"
)

// AccessStore is the persistence surface the gateway needs.
type AccessStore interface {
	GetSettings(ctx context.Context) (core.AccessSettings, error)
	UpdateSettings(ctx context.Context, settings core.AccessSettings) error
	ContainsAccessEntry(ctx context.Context, listType core.ListType, ip string) (bool, error)
	ReplaceAccessList(ctx context.Context, listType core.ListType, ips []string) error
	ListAccessEntries(ctx context.Context, listType core.ListType) ([]core.AccessEntry, error)
}

// AccessGateway enforces the IP blacklist/whitelist in front of the check
// workflow. Every rejection, whatever its cause, surfaces as the same opaque
// ErrAccessDenied after a randomized delay, so a blocked caller cannot tell
// a malformed address from a blacklist hit by response shape or timing.
type AccessGateway struct {
	Store    AccessStore
	Notifier *notify.Notifier
	Logger   *logging.Logger

	DelayMin time.Duration
	DelayMax time.Duration

	Sleep func(time.Duration)

	flight sync.Mutex // guards cached alongside group below
	group  singleflight.Group
	cached *core.AccessSettings
}

// CheckIP validates the address format and evaluates it against the enabled
// lists. screenName and connIP are carried for alert context only.
func (g *AccessGateway) CheckIP(ctx context.Context, ip, screenName, connIP string) error {
	if g == nil || g.Store == nil {
		return fmt.Errorf("access gateway is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !validIPv4(ip) {
		return g.deny("malformed ip", ip, screenName, connIP, core.AccessSettings{})
	}

	settings := g.settings(ctx)

	if settings.WhitelistEnabled {
		allowed, err := g.Store.ContainsAccessEntry(ctx, core.ListTypeWhitelist, ip)
		if err != nil {
			// A whitelist we cannot read admits nobody.
			g.logStoreFailure("whitelist", err)
			allowed = false
		}
		if !allowed {
			return g.deny("not whitelisted", ip, screenName, connIP, settings)
		}
	}

	if settings.BlacklistEnabled {
		blocked, err := g.Store.ContainsAccessEntry(ctx, core.ListTypeBlacklist, ip)
		if err != nil {
			// A blacklist we cannot read blocks nobody.
			g.logStoreFailure("blacklist", err)
			blocked = false
		}
		if blocked {
			return g.deny("blacklisted", ip, screenName, connIP, settings)
		}
	}

	return nil
}

// Deny rejects a request that failed a gate other than the IP lists (a bad
// or replayed proof-of-work, typically) with the same opaque error, alert,
// and timing jitter as a list denial.
func (g *AccessGateway) Deny(reason, ip, screenName, connIP string) error {
	if g == nil {
		return core.ErrAccessDenied
	}
	return g.deny(reason, ip, screenName, connIP, core.AccessSettings{})
}

// ReplaceList transactionally swaps the full contents of one list and
// returns the inserted count.
func (g *AccessGateway) ReplaceList(ctx context.Context, listType core.ListType, ips []string) (int, error) {
	if g == nil || g.Store == nil {
		return 0, fmt.Errorf("access gateway is not initialized")
	}
	if !listType.Valid() {
		return 0, fmt.Errorf("invalid list type: %s", listType)
	}

	if err := g.Store.ReplaceAccessList(ctx, listType, ips); err != nil {
		return 0, err
	}

	g.Notifier.Send(
		fmt.Sprintf("%s replaced: %d entries", listType, len(ips)),
		notify.TagGateway)
	return len(ips), nil
}

// UpdateSettings persists the enforcement flags and refreshes the cache in
// the same critical section, so no reader sees stale settings after the
// write returns.
func (g *AccessGateway) UpdateSettings(ctx context.Context, settings core.AccessSettings) error {
	if g == nil || g.Store == nil {
		return fmt.Errorf("access gateway is not initialized")
	}

	g.flight.Lock()
	defer g.flight.Unlock()

	if err := g.Store.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	g.cached = &settings
	return nil
}

// Lockdown force-enables both lists. Invoked by the load monitor.
func (g *AccessGateway) Lockdown(ctx context.Context) {
	if g == nil {
		return
	}
	locked := core.AccessSettings{BlacklistEnabled: true, WhitelistEnabled: true}
	if err := g.UpdateSettings(ctx, locked); err != nil {
		if g.Logger != nil {
			g.Logger.Error("Failed to persist lockdown settings", zap.Error(err))
		}
		// Keep the stricter flags in memory even if the write failed.
		g.flight.Lock()
		g.cached = &locked
		g.flight.Unlock()
	}
}

// settings returns the cached enforcement flags, loading them at most once
// across concurrent callers. A failed load falls back to the strictest
// defaults rather than admitting traffic on unknown settings.
func (g *AccessGateway) settings(ctx context.Context) core.AccessSettings {
	g.flight.Lock()
	if g.cached != nil {
		cached := *g.cached
		g.flight.Unlock()
		return cached
	}
	g.flight.Unlock()

	value, err, _ := g.group.Do("settings", func() (interface{}, error) {
		settings, err := g.Store.GetSettings(ctx)
		if err != nil {
			return nil, err
		}
		g.flight.Lock()
		g.cached = &settings
		g.flight.Unlock()
		return settings, nil
	})
	if err != nil {
		g.logStoreFailure("settings", err)
		return core.AccessSettings{BlacklistEnabled: true, WhitelistEnabled: true}
	}
	return value.(core.AccessSettings)
}

func (g *AccessGateway) deny(reason, ip, screenName, connIP string, settings core.AccessSettings) error {
	if g.Logger != nil {
		g.Logger.Warn("Access denied",
			zap.String("reason", reason),
			zap.String("ip", ip),
			zap.String("conn_ip", connIP),
			zap.String("screen_name", screenName),
			zap.Bool("blacklist_enabled", settings.BlacklistEnabled),
			zap.Bool("whitelist_enabled", settings.WhitelistEnabled))
	}
	g.Notifier.Send(
		fmt.Sprintf("denied %s (conn %s) checking %q: %s [blacklist=%t whitelist=%t]",
			ip, connIP, screenName, reason, settings.BlacklistEnabled, settings.WhitelistEnabled),
		notify.TagGateway)
	metrics.RecordGateEvent("denied")

	g.delay()
	return core.ErrAccessDenied
}

// delay sleeps a uniform random duration so denials are not distinguishable
// from slow successful processing by timing.
func (g *AccessGateway) delay() {
	min := g.DelayMin
	max := g.DelayMax
	if min <= 0 {
		min = 400 * time.Millisecond
	}
	if max <= min {
		max = min + 500*time.Millisecond
	}

	d := min + time.Duration(rand.Int63n(int64(max-min))) // #nosec G404 -- timing jitter, not key material
	if g.Sleep != nil {
		g.Sleep(d)
		return
	}
	time.Sleep(d)
}

// validIPv4 accepts exactly four dot-separated decimal segments in [0,255]
// with no leading zeros ("0" itself is fine).
func validIPv4(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		if len(part) > 1 && part[0] == '0' {
			return false
		}
		value := 0
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
			value = value*10 + int(c-'0')
		}
		if value > 255 {
			return false
		}
	}
	return true
}

func (g *AccessGateway) logStoreFailure(what string, err error) {
	if g.Logger == nil {
		return
	}
	g.Logger.Error("Access store read failed",
		zap.String("resource", what),
		zap.Error(err))
}
