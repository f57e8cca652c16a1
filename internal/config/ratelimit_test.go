package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30, cfg.Max)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.Equal(t, "rl", cfg.Prefix)
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_PREFIX", "booking")

	cfg := LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 5, cfg.Max)
	assert.Equal(t, 30*time.Second, cfg.Window)
	assert.Equal(t, "booking", cfg.Prefix)
}

func TestLoadRateLimitConfigClampsBadValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "-3")
	t.Setenv("RATE_LIMIT_WINDOW", "not-a-duration")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Max, "non-positive max clamps to 1")
	assert.Equal(t, time.Minute, cfg.Window, "unparseable window falls back to the default")
}
