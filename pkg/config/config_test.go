package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialtone.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBindAddress, cfg.IPC.BindAddress)
	assert.Equal(t, DefaultQueueWarnDepth, cfg.Dispatch.QueueWarnDepth)
	assert.False(t, cfg.IPC.PublicMetrics)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBindAddress, cfg.IPC.BindAddress)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
ipc:
  bind_address: "127.0.0.1:9999"
  public_metrics: true
logging:
  level: debug
  format: text
dispatch:
  queue_warn_depth: 64
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.IPC.BindAddress)
	assert.True(t, cfg.IPC.PublicMetrics)
	assert.Equal(t, 64, cfg.Dispatch.QueueWarnDepth)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_RejectsBadBindAddress(t *testing.T) {
	path := writeConfig(t, `
ipc:
  bind_address: "not-an-address"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsUnknownLogLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: shouty
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "ipc: [")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_NegativeWarnDepth(t *testing.T) {
	cfg := Default()
	cfg.Dispatch.QueueWarnDepth = -1
	require.Error(t, cfg.Validate())
}
