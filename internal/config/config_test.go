package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8002", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 15*time.Second, cfg.CacheTTL())
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 2.0, cfg.ProximityThresholdMiles)
	assert.Equal(t, 4*time.Hour, cfg.StalledArrival())
	assert.Equal(t, 500, cfg.BatchSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "5000")
	t.Setenv("PROXIMITY_THRESHOLD_MILES", "1.5")
	t.Setenv("STALLED_ARRIVAL_HOURS", "6")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, 1.5, cfg.ProximityThresholdMiles)
	assert.Equal(t, 6*time.Hour, cfg.StalledArrival())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "not-a-number")
	t.Setenv("PROXIMITY_THRESHOLD_MILES", "wide")

	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 2.0, cfg.ProximityThresholdMiles)
}
