package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/core/engine"
)

type memCredentialStore struct {
	creds []core.Credential
}

func (m *memCredentialStore) EligibleCredentials(_ context.Context, now time.Time) ([]core.Credential, error) {
	var eligible []core.Credential
	for _, cred := range m.creds {
		if cred.Eligible(now) {
			eligible = append(eligible, cred)
		}
	}
	return eligible, nil
}

func (m *memCredentialStore) TouchCredential(_ context.Context, id int64, usedAt time.Time) error {
	for i := range m.creds {
		if m.creds[i].ID == id {
			m.creds[i].LastUsedAt = usedAt
		}
	}
	return nil
}

func (m *memCredentialStore) BanCredentialUntil(_ context.Context, id int64, resetAt time.Time) error {
	for i := range m.creds {
		if m.creds[i].ID == id && resetAt.After(m.creds[i].ResetAt) {
			m.creds[i].ResetAt = resetAt
		}
	}
	return nil
}

func (m *memCredentialStore) DeleteCredential(_ context.Context, id int64) error {
	kept := m.creds[:0]
	for _, cred := range m.creds {
		if cred.ID != id {
			kept = append(kept, cred)
		}
	}
	m.creds = kept
	return nil
}

func (m *memCredentialStore) UpsertCredential(_ context.Context, token, account string) (int64, error) {
	id := int64(len(m.creds) + 1)
	m.creds = append(m.creds, core.Credential{ID: id, Token: token, Account: account})
	return id, nil
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *memCredentialStore) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := &memCredentialStore{creds: []core.Credential{{ID: 1, Token: "tok", Account: "acct"}}}
	return &Client{
		HTTP:    server.Client(),
		Pool:    &engine.CredentialPool{Store: store},
		Tracker: engine.NewRateLimitTracker(),
		BaseURL: server.URL,
	}, store
}

func TestClientSendsBearerToken(t *testing.T) {
	var auth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{"user":{"result":{"__typename":"User","rest_id":"1","legacy":{"screen_name":"jack"}}}}}`)) // nolint:errcheck
	}))

	_, err := client.Profile(context.Background(), "jack")
	require.NoError(t, err)
	require.Equal(t, "Bearer tok", auth)
}

func TestClientHandles429(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Unix()
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", itoa64(reset))
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.Profile(context.Background(), "jack")
	require.ErrorIs(t, err, core.ErrUpstreamRateLimited)

	// The credential is banned until the server-supplied reset.
	require.Equal(t, reset, store.creds[0].ResetAt.Unix())

	// The next call through the same group is pre-empted by the tracker
	// without another credential selection.
	_, err = client.Profile(context.Background(), "jack")
	require.ErrorIs(t, err, core.ErrUpstreamRateLimited)
}

func TestClientHandles401(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Profile(context.Background(), "jack")
	require.ErrorIs(t, err, core.ErrUpstreamAuthInvalid)
	require.Empty(t, store.creds)

	// With the only credential deleted the pool is exhausted.
	_, err = client.Profile(context.Background(), "jack")
	require.ErrorIs(t, err, core.ErrPoolExhausted)
}

func TestClientUnexpectedStatusLeavesCredentialAlone(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Profile(context.Background(), "jack")
	require.Error(t, err)
	require.NotErrorIs(t, err, core.ErrUpstreamRateLimited)
	require.NotErrorIs(t, err, core.ErrUpstreamAuthInvalid)

	require.Len(t, store.creds, 1)
	require.True(t, store.creds[0].ResetAt.IsZero())
}

// cancelAwareCredentialStore fails writes on a done context, the way a real
// database driver does.
type cancelAwareCredentialStore struct {
	memCredentialStore
}

func (s *cancelAwareCredentialStore) BanCredentialUntil(ctx context.Context, id int64, resetAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memCredentialStore.BanCredentialUntil(ctx, id, resetAt)
}

func TestClientTimeoutBansCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`)) // nolint:errcheck
	}))
	t.Cleanup(server.Close)

	store := &cancelAwareCredentialStore{
		memCredentialStore{creds: []core.Credential{{ID: 1, Token: "tok", Account: "acct"}}},
	}
	client := &Client{
		HTTP:    server.Client(),
		Pool:    &engine.CredentialPool{Store: store, OperationalBan: time.Hour},
		Tracker: engine.NewRateLimitTracker(),
		BaseURL: server.URL,
		Timeout: 20 * time.Millisecond,
	}

	_, err := client.Profile(context.Background(), "jack")
	require.Error(t, err)

	// The operational ban must land even though the request context expired
	// with the timed-out call; otherwise the same credential is re-selected
	// for the whole rotation slot.
	require.False(t, store.creds[0].ResetAt.IsZero())
}

func TestClientDecodeFailureBansCredential(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>")) // nolint:errcheck
	}))
	client.Pool.OperationalBan = time.Hour

	_, err := client.Profile(context.Background(), "jack")
	require.Error(t, err)
	require.False(t, store.creds[0].ResetAt.IsZero())
}

func TestClientCapturesRateLimitHeaders(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Unix()
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", itoa64(reset))
		w.Write([]byte(`{"data":{"timeline":{"instructions":[]}}}`)) // nolint:errcheck
	}))

	_, err := client.SearchPresence(context.Background(), "jack")
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// The shared search group is now exhausted, so the typeahead call is
	// pre-empted before reaching the server.
	_, err = client.SearchSuggestion(context.Background(), "jack")
	require.ErrorIs(t, err, core.ErrUpstreamRateLimited)
	require.Equal(t, 1, calls)
}

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
