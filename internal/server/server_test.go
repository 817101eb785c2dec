package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shadowlens/shadowlens/internal/config"
	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/core/engine"
	"github.com/shadowlens/shadowlens/internal/core/gate"
	apperrors "github.com/shadowlens/shadowlens/internal/errors"
)

type memAccessStore struct {
	settings core.AccessSettings
	entries  map[core.ListType]map[string]bool
}

func newMemAccessStore() *memAccessStore {
	return &memAccessStore{
		settings: core.AccessSettings{BlacklistEnabled: true},
		entries:  make(map[core.ListType]map[string]bool),
	}
}

func (m *memAccessStore) GetSettings(context.Context) (core.AccessSettings, error) {
	return m.settings, nil
}

func (m *memAccessStore) UpdateSettings(_ context.Context, settings core.AccessSettings) error {
	m.settings = settings
	return nil
}

func (m *memAccessStore) ContainsAccessEntry(_ context.Context, listType core.ListType, ip string) (bool, error) {
	return m.entries[listType][ip], nil
}

func (m *memAccessStore) ReplaceAccessList(_ context.Context, listType core.ListType, ips []string) error {
	set := make(map[string]bool, len(ips))
	for _, ip := range ips {
		set[ip] = true
	}
	m.entries[listType] = set
	return nil
}

func (m *memAccessStore) ListAccessEntries(_ context.Context, listType core.ListType) ([]core.AccessEntry, error) {
	var entries []core.AccessEntry
	for ip := range m.entries[listType] {
		entries = append(entries, core.AccessEntry{IP: ip, ListType: listType})
	}
	return entries, nil
}

type memCredStore struct {
	nextID int64
}

func (m *memCredStore) EligibleCredentials(context.Context, time.Time) ([]core.Credential, error) {
	return nil, nil
}

func (m *memCredStore) TouchCredential(context.Context, int64, time.Time) error { return nil }

func (m *memCredStore) BanCredentialUntil(context.Context, int64, time.Time) error { return nil }

func (m *memCredStore) DeleteCredential(context.Context, int64) error { return nil }

func (m *memCredStore) UpsertCredential(context.Context, string, string) (int64, error) {
	m.nextID++
	return m.nextID, nil
}

type stubPlatform struct{}

func (stubPlatform) Profile(_ context.Context, screenName string) (core.ProfileLookup, error) {
	return core.ProfileLookup{Profile: &core.Profile{UserID: "7", ScreenName: screenName}}, nil
}

func (stubPlatform) SearchPresence(context.Context, string) (bool, error) { return true, nil }

func (stubPlatform) SearchSuggestion(context.Context, string) (bool, error) { return true, nil }

func (stubPlatform) Timeline(context.Context, string, string) (core.TimelinePage, error) {
	return core.TimelinePage{}, nil
}

func (stubPlatform) ReplyVisibility(context.Context, string, string) (core.ReplyVisibility, error) {
	return core.ReplyVisibility{Found: true}, nil
}

type stubProber struct{}

func (stubProber) ProbeBatch(_ context.Context, tweets []core.TweetRef) []core.TweetAvailability {
	results := make([]core.TweetAvailability, len(tweets))
	for i, tweet := range tweets {
		results[i] = core.TweetAvailability{TweetID: tweet.ID, URL: tweet.URL, Available: true}
	}
	return results
}

type memHistory struct {
	saved []core.CheckResult
}

func (m *memHistory) SaveCheckResult(_ context.Context, result core.CheckResult) error {
	m.saved = append(m.saved, result)
	return nil
}

func newTestServer(t *testing.T) (*Server, *memAccessStore, *memHistory) {
	t.Helper()

	accessStore := newMemAccessStore()
	history := &memHistory{}

	gateway := &gate.AccessGateway{
		Store: accessStore,
		Sleep: func(time.Duration) {},
	}
	orchestrator := &engine.Orchestrator{
		Platform: stubPlatform{},
		Prober:   stubProber{},
		History:  history,
		Sleep:    func(time.Duration) {},
	}
	pool := &engine.CredentialPool{Store: &memCredStore{}}

	srv := New(config.ServerConfig{Host: "127.0.0.1"}, Deps{
		Orchestrator: orchestrator,
		Gateway:      gateway,
		Pow:          &gate.ProofOfWorkGate{},
		Monitor:      &gate.LoadMonitor{},
		Pool:         pool,
	})
	return srv, accessStore, history
}

func issueChallenge(t *testing.T, srv *Server) (string, int) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/pow/challenge", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 issuing challenge, got %d", rec.Code)
	}

	var challenge struct {
		ChallengeID string `json:"challenge_id"`
		Difficulty  int    `json:"difficulty"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&challenge); err != nil {
		t.Fatalf("failed to decode challenge: %v", err)
	}
	return challenge.ChallengeID, challenge.Difficulty
}

func postCheck(srv *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServerRejectsUnsupportedMethod(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "METHOD_NOT_ALLOWED" {
		t.Fatalf("expected error code METHOD_NOT_ALLOWED, got %s", body.Error.Code)
	}
}

func TestCheckEndpointFullFlow(t *testing.T) {
	srv, _, history := newTestServer(t)

	challengeID, difficulty := issueChallenge(t, srv)
	nonce := gate.Solve(challengeID, difficulty)

	rec := postCheck(srv, fmt.Sprintf(
		`{"screen_name": "jack", "ip": "1.2.3.4", "challenge_id": %q, "nonce": %q}`,
		challengeID, nonce))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result core.CheckResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode check result: %v", err)
	}

	if result.SessionID == "" {
		t.Fatalf("expected a session id on the result")
	}
	if result.ScreenName != "jack" {
		t.Fatalf("expected screen name jack, got %s", result.ScreenName)
	}
	if result.Flags != (core.RestrictionFlags{}) {
		t.Fatalf("expected a clean result, got %+v", result.Flags)
	}
	if len(history.saved) != 1 {
		t.Fatalf("expected the result to be persisted, saved %d", len(history.saved))
	}
}

func TestCheckEndpointRejectsBadNonce(t *testing.T) {
	srv, _, _ := newTestServer(t)

	challengeID, _ := issueChallenge(t, srv)

	rec := postCheck(srv, fmt.Sprintf(
		`{"screen_name": "jack", "ip": "1.2.3.4", "challenge_id": %q, "nonce": "wrong"}`,
		challengeID))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "ACCESS_DENIED" {
		t.Fatalf("expected error code ACCESS_DENIED, got %s", body.Error.Code)
	}
	if body.Error.Details != nil {
		t.Fatalf("denial must not leak detail, got %v", body.Error.Details)
	}
}

func TestCheckEndpointChallengeIsSingleUse(t *testing.T) {
	srv, _, _ := newTestServer(t)

	challengeID, difficulty := issueChallenge(t, srv)
	nonce := gate.Solve(challengeID, difficulty)
	body := fmt.Sprintf(
		`{"screen_name": "jack", "ip": "1.2.3.4", "challenge_id": %q, "nonce": %q}`,
		challengeID, nonce)

	if rec := postCheck(srv, body); rec.Code != http.StatusOK {
		t.Fatalf("expected first use to succeed, got %d", rec.Code)
	}
	if rec := postCheck(srv, body); rec.Code != http.StatusForbidden {
		t.Fatalf("expected replay to be denied, got %d", rec.Code)
	}
}

func TestCheckEndpointRejectsBlacklistedIP(t *testing.T) {
	srv, accessStore, _ := newTestServer(t)
	accessStore.entries[core.ListTypeBlacklist] = map[string]bool{"9.9.9.9": true}

	challengeID, difficulty := issueChallenge(t, srv)
	nonce := gate.Solve(challengeID, difficulty)

	rec := postCheck(srv, fmt.Sprintf(
		`{"screen_name": "jack", "ip": "9.9.9.9", "challenge_id": %q, "nonce": %q}`,
		challengeID, nonce))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestAdminEndpointsRequireBearerToken(t *testing.T) {
	t.Setenv("SHADOWLENS_ADMIN_TOKEN", "sekrit")
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", rec.Code)
	}

	update := httptest.NewRequest(http.MethodPut, "/admin/settings",
		strings.NewReader(`{"blacklist_enabled": false, "whitelist_enabled": false}`))
	update.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, update)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	var settings core.AccessSettings
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("failed to decode settings: %v", err)
	}
	if settings.BlacklistEnabled || settings.WhitelistEnabled {
		t.Fatalf("expected both flags disabled, got %+v", settings)
	}
}

func TestAdminEndpointsAbsentWithoutToken(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 when admin surface is disabled, got %d", rec.Code)
	}
}

func TestAdminReplaceAccessList(t *testing.T) {
	t.Setenv("SHADOWLENS_ADMIN_TOKEN", "sekrit")
	srv, accessStore, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/admin/accesslist/blacklist",
		strings.NewReader(`{"ips": ["1.1.1.1", "2.2.2.2"]}`))
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Replaced int `json:"replaced"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Replaced != 2 {
		t.Fatalf("expected 2 replaced entries, got %d", resp.Replaced)
	}
	if !accessStore.entries[core.ListTypeBlacklist]["2.2.2.2"] {
		t.Fatalf("expected 2.2.2.2 on the blacklist")
	}
}

func TestAdminRejectsUnknownListType(t *testing.T) {
	t.Setenv("SHADOWLENS_ADMIN_TOKEN", "sekrit")
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/accesslist/greylist", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestAdminAddCredential(t *testing.T) {
	t.Setenv("SHADOWLENS_ADMIN_TOKEN", "sekrit")
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/credentials",
		strings.NewReader(`{"token": "AAAA", "account": "probe-1"}`))
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID == 0 {
		t.Fatalf("expected a credential id")
	}
}
