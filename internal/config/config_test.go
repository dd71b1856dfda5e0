package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctomkow/gluetube/internal/config"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "gluetube.cfg")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func validConfig(dir string) string {
	return `PIPELINE_DIR = ` + dir + `
PIPELINE_SCAN_INTERVAL = 30
SQLITE_DIR = ` + dir + `
SQLITE_APP_NAME = gluetube
SQLITE_KV_NAME = kv
SQLITE_TOKEN = secret
SOCKET_FILE = ` + filepath.Join(dir, "gluetube.sock") + `
PID_FILE = ` + filepath.Join(dir, "gluetube.pid") + `
GLUETUBE_LOG_FILE = ` + filepath.Join(dir, "gluetube.log") + `
`
}

func TestLoad_ParsesAllFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validConfig(dir))

	cfg, err := config.Load([]string{path})
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.PipelineScanInterval)
	assert.Equal(t, "gluetube", cfg.SQLiteAppName)
	assert.Equal(t, "secret", cfg.SQLiteToken)
}

func TestLoad_MissingRequiredKeyErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `PIPELINE_DIR = `+dir+"\n")

	_, err := config.Load([]string{path})
	assert.Error(t, err)
}

func TestLoad_NoReadableLocationErrors(t *testing.T) {
	_, err := config.Load([]string{filepath.Join(t.TempDir(), "does-not-exist.cfg")})
	assert.Error(t, err)
}

func TestLoad_LastExistingLocationWins(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	path1 := writeConfig(t, dir1, validConfig(dir1))
	path2 := writeConfig(t, dir2, validConfig(dir2))

	cfg, err := config.Load([]string{
		path1,
		path2,
		filepath.Join(dir1, "does-not-exist.cfg"),
	})
	require.NoError(t, err)
	assert.Equal(t, dir2, cfg.SQLiteDir)
}

func TestLoad_InvalidScanIntervalErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `PIPELINE_DIR = `+dir+`
PIPELINE_SCAN_INTERVAL = not-a-number
SQLITE_DIR = `+dir+`
SQLITE_APP_NAME = gluetube
SQLITE_KV_NAME = kv
SQLITE_TOKEN = secret
SOCKET_FILE = `+filepath.Join(dir, "gluetube.sock")+`
PID_FILE = `+filepath.Join(dir, "gluetube.pid")+`
GLUETUBE_LOG_FILE = `+filepath.Join(dir, "gluetube.log")+`
`)

	_, err := config.Load([]string{path})
	assert.Error(t, err)
}

func TestWriteToken_PersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validConfig(dir))

	cfg, err := config.Load([]string{path})
	require.NoError(t, err)

	require.NoError(t, cfg.WriteToken("rotated-secret"))
	assert.Equal(t, "rotated-secret", cfg.SQLiteToken)

	reloaded, err := config.Load([]string{path})
	require.NoError(t, err)
	assert.Equal(t, "rotated-secret", reloaded.SQLiteToken)
}
