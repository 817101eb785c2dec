package gate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shadowlens/shadowlens/internal/core"
)

type fakeAccessStore struct {
	settings     core.AccessSettings
	settingsErr  error
	settingsGets int

	lists    map[core.ListType]map[string]bool
	listsErr error
	replaced map[core.ListType][]string
}

func newFakeAccessStore() *fakeAccessStore {
	return &fakeAccessStore{
		lists:    map[core.ListType]map[string]bool{},
		replaced: map[core.ListType][]string{},
	}
}

func (f *fakeAccessStore) GetSettings(context.Context) (core.AccessSettings, error) {
	f.settingsGets++
	return f.settings, f.settingsErr
}

func (f *fakeAccessStore) UpdateSettings(_ context.Context, settings core.AccessSettings) error {
	f.settings = settings
	return nil
}

func (f *fakeAccessStore) ContainsAccessEntry(_ context.Context, listType core.ListType, ip string) (bool, error) {
	if f.listsErr != nil {
		return false, f.listsErr
	}
	return f.lists[listType][ip], nil
}

func (f *fakeAccessStore) ReplaceAccessList(_ context.Context, listType core.ListType, ips []string) error {
	set := map[string]bool{}
	for _, ip := range ips {
		set[ip] = true
	}
	f.lists[listType] = set
	f.replaced[listType] = ips
	return nil
}

func (f *fakeAccessStore) ListAccessEntries(_ context.Context, listType core.ListType) ([]core.AccessEntry, error) {
	entries := make([]core.AccessEntry, 0, len(f.replaced[listType]))
	for i := len(f.replaced[listType]) - 1; i >= 0; i-- {
		entries = append(entries, core.AccessEntry{IP: f.replaced[listType][i], ListType: listType})
	}
	return entries, nil
}

func newTestGateway(store *fakeAccessStore) (*AccessGateway, *[]time.Duration) {
	var delays []time.Duration
	g := &AccessGateway{
		Store: store,
		Sleep: func(d time.Duration) { delays = append(delays, d) },
	}
	return g, &delays
}

func TestCheckIPFormatValidation(t *testing.T) {
	store := newFakeAccessStore()
	g, _ := newTestGateway(store)

	valid := []string{"0.0.0.0", "255.255.255.255", "10.0.0.1"}
	for _, ip := range valid {
		require.NoError(t, g.CheckIP(context.Background(), ip, "jack", ip), ip)
	}

	invalid := []string{"256.1.1.1", "01.2.3.4", "1.2.3", "1.2.3.4.5", "a.b.c.d", "1..2.3", ""}
	for _, ip := range invalid {
		err := g.CheckIP(context.Background(), ip, "jack", ip)
		require.ErrorIs(t, err, core.ErrAccessDenied, ip)
	}
}

func TestCheckIPBlacklist(t *testing.T) {
	store := newFakeAccessStore()
	store.settings = core.AccessSettings{BlacklistEnabled: true}
	store.lists[core.ListTypeBlacklist] = map[string]bool{"9.9.9.9": true}
	g, delays := newTestGateway(store)

	require.NoError(t, g.CheckIP(context.Background(), "8.8.8.8", "jack", "8.8.8.8"))
	require.Empty(t, *delays)

	err := g.CheckIP(context.Background(), "9.9.9.9", "jack", "9.9.9.9")
	require.ErrorIs(t, err, core.ErrAccessDenied)
	require.Len(t, *delays, 1)
}

func TestCheckIPWhitelist(t *testing.T) {
	store := newFakeAccessStore()
	store.settings = core.AccessSettings{WhitelistEnabled: true}
	store.lists[core.ListTypeWhitelist] = map[string]bool{"7.7.7.7": true}
	g, _ := newTestGateway(store)

	require.NoError(t, g.CheckIP(context.Background(), "7.7.7.7", "jack", "7.7.7.7"))
	require.ErrorIs(t, g.CheckIP(context.Background(), "8.8.8.8", "jack", "8.8.8.8"), core.ErrAccessDenied)
}

func TestCheckIPBlacklistReadFailsOpen(t *testing.T) {
	store := newFakeAccessStore()
	store.settings = core.AccessSettings{BlacklistEnabled: true}
	store.listsErr = fmt.Errorf("store down")
	g, _ := newTestGateway(store)

	require.NoError(t, g.CheckIP(context.Background(), "9.9.9.9", "jack", "9.9.9.9"))
}

func TestCheckIPSettingsFetchFailsClosed(t *testing.T) {
	store := newFakeAccessStore()
	store.settingsErr = fmt.Errorf("store down")
	g, _ := newTestGateway(store)

	// Strictest defaults apply: whitelist enforcement denies everyone who
	// is not whitelisted (and the list is empty here).
	err := g.CheckIP(context.Background(), "8.8.8.8", "jack", "8.8.8.8")
	require.ErrorIs(t, err, core.ErrAccessDenied)
}

func TestSettingsAreCachedAfterFirstLoad(t *testing.T) {
	store := newFakeAccessStore()
	g, _ := newTestGateway(store)

	for i := 0; i < 5; i++ {
		require.NoError(t, g.CheckIP(context.Background(), "8.8.8.8", "jack", "8.8.8.8"))
	}
	require.Equal(t, 1, store.settingsGets)
}

func TestUpdateSettingsRefreshesCache(t *testing.T) {
	store := newFakeAccessStore()
	g, _ := newTestGateway(store)

	require.NoError(t, g.CheckIP(context.Background(), "8.8.8.8", "jack", "8.8.8.8"))

	require.NoError(t, g.UpdateSettings(context.Background(), core.AccessSettings{WhitelistEnabled: true}))

	// The very next read sees the new flags without another store fetch.
	err := g.CheckIP(context.Background(), "8.8.8.8", "jack", "8.8.8.8")
	require.ErrorIs(t, err, core.ErrAccessDenied)
	require.Equal(t, 1, store.settingsGets)
}

func TestLockdownForceEnablesBothLists(t *testing.T) {
	store := newFakeAccessStore()
	g, _ := newTestGateway(store)

	g.Lockdown(context.Background())

	require.True(t, store.settings.BlacklistEnabled)
	require.True(t, store.settings.WhitelistEnabled)
	require.ErrorIs(t, g.CheckIP(context.Background(), "8.8.8.8", "jack", "8.8.8.8"), core.ErrAccessDenied)
}

func TestReplaceListReturnsCount(t *testing.T) {
	store := newFakeAccessStore()
	g, _ := newTestGateway(store)

	count, err := g.ReplaceList(context.Background(), core.ListTypeBlacklist, []string{"1.1.1.1", "2.2.2.2"})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	entries, err := store.ListAccessEntries(context.Background(), core.ListTypeBlacklist)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "2.2.2.2", entries[0].IP)

	_, err = g.ReplaceList(context.Background(), "greylist", nil)
	require.Error(t, err)
}

func TestDenialDelayStaysInRange(t *testing.T) {
	store := newFakeAccessStore()
	store.settings = core.AccessSettings{BlacklistEnabled: true}
	store.lists[core.ListTypeBlacklist] = map[string]bool{"9.9.9.9": true}
	g, delays := newTestGateway(store)
	g.DelayMin = 400 * time.Millisecond
	g.DelayMax = 900 * time.Millisecond

	for i := 0; i < 20; i++ {
		_ = g.CheckIP(context.Background(), "9.9.9.9", "jack", "9.9.9.9")
	}
	require.Len(t, *delays, 20)
	for _, d := range *delays {
		require.GreaterOrEqual(t, d, 400*time.Millisecond)
		require.Less(t, d, 900*time.Millisecond)
	}
}
