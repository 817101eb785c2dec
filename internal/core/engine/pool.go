package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/metrics"
	"github.com/shadowlens/shadowlens/internal/notify"
)

// CredentialStore is the persistence surface the pool needs.
type CredentialStore interface {
	EligibleCredentials(ctx context.Context, now time.Time) ([]core.Credential, error)
	TouchCredential(ctx context.Context, id int64, usedAt time.Time) error
	BanCredentialUntil(ctx context.Context, id int64, resetAt time.Time) error
	DeleteCredential(ctx context.Context, id int64) error
	UpsertCredential(ctx context.Context, token, account string) (int64, error)
}

// CredentialPool rotates upstream credentials and applies the failure policy:
// rate limiting bans until the server-supplied reset, auth failure deletes,
// operational failure bans for a fixed duration.
type CredentialPool struct {
	Store    CredentialStore
	Notifier *notify.Notifier
	Logger   *logging.Logger

	// SlotWidth partitions the day into rotation slots; OperationalBan is
	// the temporary ban applied on malformed payloads and timeouts.
	SlotWidth      time.Duration
	OperationalBan time.Duration

	Clock func() time.Time
}

// Select returns one eligible credential. Selection is deterministic within a
// time slot: the eligible set is ordered by creation and indexed by the
// current slot number modulo the set size, so the choice rotates at slot
// boundaries without any stored cursor.
func (p *CredentialPool) Select(ctx context.Context) (core.Credential, error) {
	if p == nil || p.Store == nil {
		return core.Credential{}, fmt.Errorf("credential pool is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := p.now()
	eligible, err := p.Store.EligibleCredentials(ctx, now)
	if err != nil {
		return core.Credential{}, fmt.Errorf("load eligible credentials: %w", err)
	}
	metrics.SetPoolSize(len(eligible))

	if len(eligible) == 0 {
		p.Notifier.Send("credential pool exhausted: no eligible credentials", notify.TagPool)
		metrics.RecordCredentialEvent("exhausted")
		return core.Credential{}, core.ErrPoolExhausted
	}

	cred := eligible[p.slot(now)%len(eligible)]
	if err := p.Store.TouchCredential(ctx, cred.ID, now); err != nil {
		return core.Credential{}, fmt.Errorf("touch credential %d: %w", cred.ID, err)
	}
	cred.LastUsedAt = now

	metrics.RecordCredentialEvent("selected")
	return cred, nil
}

// ReportRateLimited bans a credential until the server-supplied reset epoch.
// The stored reset time never moves backward, so stale or repeated reports
// are harmless.
func (p *CredentialPool) ReportRateLimited(ctx context.Context, cred core.Credential, resetEpochSec int64) error {
	if p == nil || p.Store == nil {
		return fmt.Errorf("credential pool is not initialized")
	}

	resetAt := time.Unix(resetEpochSec, 0)
	if err := p.Store.BanCredentialUntil(ctx, cred.ID, resetAt); err != nil {
		return fmt.Errorf("apply rate-limit ban: %w", err)
	}

	p.logEvent("Credential rate limited", cred, zap.Time("reset_at", resetAt))
	p.Notifier.Send(
		fmt.Sprintf("credential %d (%s) rate limited until %s", cred.ID, cred.Account, resetAt.UTC().Format(time.RFC3339)),
		notify.TagPool)
	metrics.RecordCredentialEvent("rate_limited")
	return nil
}

// ReportAuthInvalid permanently removes a credential the upstream rejected
// with an auth failure.
func (p *CredentialPool) ReportAuthInvalid(ctx context.Context, cred core.Credential) error {
	if p == nil || p.Store == nil {
		return fmt.Errorf("credential pool is not initialized")
	}

	if err := p.Store.DeleteCredential(ctx, cred.ID); err != nil {
		return fmt.Errorf("delete invalid credential: %w", err)
	}

	p.logEvent("Credential deleted after auth failure", cred)
	p.Notifier.Send(
		fmt.Sprintf("credential %d (%s) deleted: upstream auth failure", cred.ID, cred.Account),
		notify.TagPool)
	metrics.RecordCredentialEvent("deleted")
	return nil
}

// ReportOperational applies a temporary ban after a malformed payload or
// timeout. The credential itself may still be valid, so it is kept.
func (p *CredentialPool) ReportOperational(ctx context.Context, cred core.Credential) error {
	if p == nil || p.Store == nil {
		return fmt.Errorf("credential pool is not initialized")
	}

	ban := p.OperationalBan
	if ban <= 0 {
		ban = 24 * time.Hour
	}
	resetAt := p.now().Add(ban)
	if err := p.Store.BanCredentialUntil(ctx, cred.ID, resetAt); err != nil {
		return fmt.Errorf("apply operational ban: %w", err)
	}

	p.logEvent("Credential banned after operational failure", cred, zap.Time("reset_at", resetAt))
	p.Notifier.Send(
		fmt.Sprintf("credential %d (%s) banned until %s after operational failure", cred.ID, cred.Account, resetAt.UTC().Format(time.RFC3339)),
		notify.TagPool)
	metrics.RecordCredentialEvent("banned")
	return nil
}

// Upsert is the entry point for the out-of-band credential acquisition step.
func (p *CredentialPool) Upsert(ctx context.Context, token, account string) (int64, error) {
	if p == nil || p.Store == nil {
		return 0, fmt.Errorf("credential pool is not initialized")
	}
	return p.Store.UpsertCredential(ctx, token, account)
}

func (p *CredentialPool) slot(now time.Time) int {
	width := p.SlotWidth
	if width <= 0 {
		width = 5 * time.Minute
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(now.Sub(midnight) / width)
}

func (p *CredentialPool) now() time.Time {
	if p != nil && p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

func (p *CredentialPool) logEvent(message string, cred core.Credential, fields ...zap.Field) {
	if p.Logger == nil {
		return
	}
	fields = append([]zap.Field{
		zap.Int64("credential_id", cred.ID),
		zap.String("account", cred.Account),
	}, fields...)
	p.Logger.Warn(message, fields...)
}
