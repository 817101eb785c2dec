package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadowlens/shadowlens/internal/config"
)

func TestBuildDSNLocalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "shadowlens.db")

	dsn, err := buildDSN(config.StoreConfig{Path: path})
	require.NoError(t, err)
	require.Equal(t, "file:"+path, dsn)

	// The parent directory must exist after building the DSN.
	require.DirExists(t, filepath.Dir(path))
}

func TestBuildDSNMemory(t *testing.T) {
	dsn, err := buildDSN(config.StoreConfig{Path: ":memory:"})
	require.NoError(t, err)
	require.Equal(t, ":memory:", dsn)
}

func TestBuildDSNRequiresPathOrURL(t *testing.T) {
	_, err := buildDSN(config.StoreConfig{})
	require.Error(t, err)
}

func TestBuildDSNRemoteURLAppendsAuthToken(t *testing.T) {
	dsn, err := buildDSN(config.StoreConfig{
		URL:       "libsql://shadowlens.turso.io",
		AuthToken: "secret",
	})
	require.NoError(t, err)
	require.Equal(t, "libsql://shadowlens.turso.io?authToken=secret", dsn)
}

func TestBuildDSNRemoteURLKeepsExistingToken(t *testing.T) {
	dsn, err := buildDSN(config.StoreConfig{
		URL:       "libsql://shadowlens.turso.io?authToken=inline",
		AuthToken: "ignored",
	})
	require.NoError(t, err)
	require.Equal(t, "libsql://shadowlens.turso.io?authToken=inline", dsn)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported store driver")
}
