package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FINX_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 8001, cfg.BridgePort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 60*time.Second, cfg.Intervals.Portfolio)
	assert.Equal(t, 15*time.Second, cfg.Intervals.Prices)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FINX_DATA_DIR", t.TempDir())
	t.Setenv("FINX_BACKEND_URL", "http://backend:9000")
	t.Setenv("BRIDGE_PORT", "9001")
	t.Setenv("PRICE_REFRESH_INTERVAL", "30s")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:9000", cfg.BackendURL)
	assert.Equal(t, 9001, cfg.BridgePort)
	assert.Equal(t, 30*time.Second, cfg.Intervals.Prices)
	assert.True(t, cfg.DevMode)
}

func TestPushURLDerivedFromBackend(t *testing.T) {
	t.Setenv("FINX_DATA_DIR", t.TempDir())
	t.Setenv("FINX_BACKEND_URL", "http://backend:9000")
	t.Setenv("FINX_PUSH_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://backend:9000/ws", cfg.PushURL)
}
