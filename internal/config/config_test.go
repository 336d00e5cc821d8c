package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/consts"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, consts.DefaultMaxConnections, cfg.MaxConnections)
	assert.Equal(t, consts.DefaultRecvBufferLimit, cfg.RecvBufferLimit)
	assert.Equal(t, consts.DefaultMessageSizeLimit, cfg.MessageSizeLimit)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPartialFileBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_connections": 3, "log_level": "debug"}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxConnections)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, consts.DefaultRecvBufferLimit, cfg.RecvBufferLimit)
	assert.Equal(t, consts.DefaultMessageSizeLimit, cfg.MessageSizeLimit)
	assert.Equal(t, 30, cfg.SweepIntervalSeconds)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.MaxConnections = 5
	cfg.WorkspaceDirs = []string{"/work/a", "/work/b"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.MaxConnections)
	assert.Equal(t, []string{"/work/a", "/work/b"}, loaded.WorkspaceDirs)
}
