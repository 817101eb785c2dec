// Package gate holds the abuse-resistance layers in front of the check
// workflow: the proof-of-work gate, the sliding-window load monitor, and the
// IP access gateway.
package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/metrics"
)

// ProofOfWorkGate issues single-use challenges and verifies submitted nonces.
// Issuance difficulty adapts to load; verification difficulty is fixed at the
// base value, so a client that solved the harder puzzle always passes.
type ProofOfWorkGate struct {
	Monitor *LoadMonitor

	BaseDifficulty int
	HighDifficulty int
	Expiry         time.Duration

	Clock func() time.Time

	mu         sync.Mutex
	challenges map[string]time.Time
}

// Issue creates a fresh challenge and returns it with the difficulty the
// client must solve at.
func (g *ProofOfWorkGate) Issue() (core.Challenge, int) {
	now := g.now()
	challenge := core.Challenge{ID: uuid.New().String(), IssuedAt: now}

	g.mu.Lock()
	if g.challenges == nil {
		g.challenges = make(map[string]time.Time)
	}
	g.challenges[challenge.ID] = now
	g.mu.Unlock()

	difficulty := g.baseDifficulty()
	if g.Monitor.OverThreshold() {
		difficulty = g.highDifficulty()
	}

	metrics.RecordGateEvent("pow_issued")
	return challenge, difficulty
}

// Verify checks a nonce against a previously issued challenge. Expired
// challenges are swept lazily on every lookup. A successful verification
// consumes the challenge; a wrong nonce leaves it usable until expiry.
func (g *ProofOfWorkGate) Verify(challengeID, nonce string) error {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweepLocked(now)

	issuedAt, ok := g.challenges[challengeID]
	if !ok {
		metrics.RecordGateEvent("pow_rejected")
		return core.ErrChallengeNotFound
	}
	if now.Sub(issuedAt) > g.expiry() {
		delete(g.challenges, challengeID)
		metrics.RecordGateEvent("pow_rejected")
		return core.ErrChallengeExpired
	}

	if !solves(challengeID, nonce, g.baseDifficulty()) {
		metrics.RecordGateEvent("pow_rejected")
		return core.ErrNonceInvalid
	}

	delete(g.challenges, challengeID)
	metrics.RecordGateEvent("pow_verified")
	return nil
}

// solves reports whether sha256(challengeID + nonce) starts with the required
// number of zero hex digits.
func solves(challengeID, nonce string, difficulty int) bool {
	sum := sha256.Sum256([]byte(challengeID + nonce))
	digest := hex.EncodeToString(sum[:])
	if difficulty > len(digest) {
		return false
	}
	for _, c := range digest[:difficulty] {
		if c != '0' {
			return false
		}
	}
	return true
}

// Solve brute-forces a matching nonce. Used by the CLI client and by tests;
// browser callers run the equivalent loop on their own hardware.
func Solve(challengeID string, difficulty int) string {
	for i := 0; ; i++ {
		nonce := fmt.Sprintf("%d", i)
		if solves(challengeID, nonce, difficulty) {
			return nonce
		}
	}
}

func (g *ProofOfWorkGate) sweepLocked(now time.Time) {
	expiry := g.expiry()
	for id, issuedAt := range g.challenges {
		if now.Sub(issuedAt) > expiry {
			delete(g.challenges, id)
		}
	}
}

func (g *ProofOfWorkGate) baseDifficulty() int {
	if g != nil && g.BaseDifficulty > 0 {
		return g.BaseDifficulty
	}
	return 3
}

func (g *ProofOfWorkGate) highDifficulty() int {
	if g != nil && g.HighDifficulty > 0 {
		return g.HighDifficulty
	}
	return 5
}

func (g *ProofOfWorkGate) expiry() time.Duration {
	if g != nil && g.Expiry > 0 {
		return g.Expiry
	}
	return 10 * time.Minute
}

func (g *ProofOfWorkGate) now() time.Time {
	if g != nil && g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}
