package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctomkow/gluetube/internal/config"
	"github.com/ctomkow/gluetube/internal/store"
)

func openTestStore(t *testing.T, secret string) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), "kv", secret)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "gluetube.cfg")
	contents := `PIPELINE_DIR = ` + dir + `
PIPELINE_SCAN_INTERVAL = 30
SQLITE_DIR = ` + dir + `
SQLITE_APP_NAME = gluetube
SQLITE_KV_NAME = kv
SQLITE_TOKEN = old-secret
SOCKET_FILE = ` + filepath.Join(dir, "gluetube.sock") + `
PID_FILE = ` + filepath.Join(dir, "gluetube.pid") + `
GLUETUBE_LOG_FILE = ` + filepath.Join(dir, "gluetube.log") + `
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestInsertOrReplaceAndValue_RoundTrip(t *testing.T) {
	s := openTestStore(t, "master-secret")
	ctx := context.Background()

	require.NoError(t, s.InsertOrReplace(ctx, store.DefaultTable, "greeting", "hello"))

	value, ok, err := s.Value(ctx, store.DefaultTable, "greeting")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", value)
}

func TestValue_MissingKeyNotFound(t *testing.T) {
	s := openTestStore(t, "master-secret")

	_, ok, err := s.Value(context.Background(), store.DefaultTable, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValue_MissingTableNotFound(t *testing.T) {
	s := openTestStore(t, "master-secret")

	_, ok, err := s.Value(context.Background(), "nosuchtable", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertOrReplace_RejectsEmptyKeyOrValue(t *testing.T) {
	s := openTestStore(t, "master-secret")
	ctx := context.Background()

	assert.Error(t, s.InsertOrReplace(ctx, store.DefaultTable, "", "value"))
	assert.Error(t, s.InsertOrReplace(ctx, store.DefaultTable, "key", ""))
}

func TestInsertOrReplace_UpsertsExistingKey(t *testing.T) {
	s := openTestStore(t, "master-secret")
	ctx := context.Background()

	require.NoError(t, s.InsertOrReplace(ctx, store.DefaultTable, "k", "v1"))
	require.NoError(t, s.InsertOrReplace(ctx, store.DefaultTable, "k", "v2"))

	value, ok, err := s.Value(ctx, store.DefaultTable, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", value)
}

func TestDelete_RemovesKey(t *testing.T) {
	s := openTestStore(t, "master-secret")
	ctx := context.Background()

	require.NoError(t, s.InsertOrReplace(ctx, store.DefaultTable, "k", "v"))
	require.NoError(t, s.Delete(ctx, store.DefaultTable, "k"))

	_, ok, err := s.Value(ctx, store.DefaultTable, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllKeyValues_ReturnsEveryPair(t *testing.T) {
	s := openTestStore(t, "master-secret")
	ctx := context.Background()

	require.NoError(t, s.InsertOrReplace(ctx, store.DefaultTable, "a", "1"))
	require.NoError(t, s.InsertOrReplace(ctx, store.DefaultTable, "b", "2"))

	pairs, err := s.AllKeyValues(ctx, store.DefaultTable)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, pairs)
}

func TestRekey_PreservesPlaintextUnderNewSecret(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, "kv", "old-secret")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.InsertOrReplace(ctx, store.DefaultTable, "k", "v"))

	cfgPath := writeTestConfig(t, dir)
	cfg, err := config.Load([]string{cfgPath})
	require.NoError(t, err)

	require.NoError(t, s.Rekey(ctx, cfg, "new-secret"))

	value, ok, err := s.Value(ctx, store.DefaultTable, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
	assert.Equal(t, "new-secret", cfg.SQLiteToken)
}

func TestRekey_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, "kv", "old-secret")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.InsertOrReplace(ctx, store.DefaultTable, "k", "v"))

	cfgPath := writeTestConfig(t, dir)
	cfg, err := config.Load([]string{cfgPath})
	require.NoError(t, err)

	require.NoError(t, s.Rekey(ctx, cfg, "new-secret"))
	require.NoError(t, s.Rekey(ctx, cfg, "new-secret"))

	value, ok, err := s.Value(ctx, store.DefaultTable, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}
