package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shadowlens/shadowlens/internal/core"
)

func newTestGate(now *time.Time) *ProofOfWorkGate {
	return &ProofOfWorkGate{
		BaseDifficulty: 2,
		HighDifficulty: 3,
		Expiry:         10 * time.Minute,
		Clock:          func() time.Time { return *now },
	}
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGate(&now)

	challenge, difficulty := g.Issue()
	require.NotEmpty(t, challenge.ID)
	require.Equal(t, 2, difficulty)

	nonce := Solve(challenge.ID, difficulty)
	require.NoError(t, g.Verify(challenge.ID, nonce))

	// Challenges are single use.
	require.ErrorIs(t, g.Verify(challenge.ID, nonce), core.ErrChallengeNotFound)
}

func TestVerifyRejectsWrongNonce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGate(&now)

	challenge, difficulty := g.Issue()
	nonce := Solve(challenge.ID, difficulty)

	wrong := nonce + "x"
	if solves(challenge.ID, wrong, difficulty) {
		wrong += "y"
	}
	require.ErrorIs(t, g.Verify(challenge.ID, wrong), core.ErrNonceInvalid)

	// A failed nonce does not consume the challenge.
	require.NoError(t, g.Verify(challenge.ID, nonce))
}

func TestVerifyExpiredChallenge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGate(&now)

	challenge, difficulty := g.Issue()
	nonce := Solve(challenge.ID, difficulty)

	now = now.Add(11 * time.Minute)
	require.ErrorIs(t, g.Verify(challenge.ID, nonce), core.ErrChallengeExpired)
}

func TestVerifyUnknownChallenge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGate(&now)

	require.ErrorIs(t, g.Verify("nope", "0"), core.ErrChallengeNotFound)
}

func TestIssueDifficultyFollowsLoad(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	monitor := &LoadMonitor{
		Window:    time.Minute,
		Threshold: 1,
		Clock:     func() time.Time { return now },
		After:     func(time.Duration, func()) {},
	}
	g := newTestGate(&now)
	g.Monitor = monitor

	_, difficulty := g.Issue()
	require.Equal(t, 2, difficulty)

	monitor.RecordAccess(context.Background())
	monitor.RecordAccess(context.Background())
	require.True(t, monitor.OverThreshold())

	challenge, difficulty := g.Issue()
	require.Equal(t, 3, difficulty)

	// Verification stays at base difficulty even for a high-load issue.
	nonce := Solve(challenge.ID, g.BaseDifficulty)
	require.NoError(t, g.Verify(challenge.ID, nonce))
}

func TestLazySweepDropsExpiredChallenges(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGate(&now)

	old, _ := g.Issue()
	now = now.Add(11 * time.Minute)
	fresh, difficulty := g.Issue()

	// Looking up the fresh challenge sweeps the stale one out.
	require.NoError(t, g.Verify(fresh.ID, Solve(fresh.ID, difficulty)))
	require.ErrorIs(t, g.Verify(old.ID, "0"), core.ErrChallengeNotFound)
}
