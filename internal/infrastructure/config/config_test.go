package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4, cfg.Aggregator.Workers)
	assert.Equal(t, 2, cfg.Aggregator.Cameras)
	assert.Equal(t, int64(1_000_000), cfg.Aggregator.ToleranceNs)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MULTICAM_WORKERS", "8")
	t.Setenv("MULTICAM_TOLERANCE_NS", "500")
	t.Setenv("MULTICAM_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Aggregator.Workers)
	assert.Equal(t, int64(500), cfg.Aggregator.ToleranceNs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset values fall through to struct tag defaults.
	assert.Equal(t, 2, cfg.Aggregator.Cameras)
}

func TestLoadOrDefaultNeverNil(t *testing.T) {
	assert.NotNil(t, LoadOrDefault())
}
