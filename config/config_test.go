package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guss/tap-arena/config"
)

func TestLoad_Defaults(t *testing.T) {
	// GIVEN: No config file and no environment overrides
	// WHEN: Loading
	// THEN: Built-in defaults apply

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "guss.db", cfg.DB.Path)
	assert.Equal(t, 30*time.Second, cfg.Round.Cooldown())
	assert.Equal(t, 60*time.Second, cfg.Round.Duration())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Tap.MaxAttempts)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	// GIVEN: GUSS_* environment variables
	// WHEN: Loading
	// THEN: They override the defaults

	t.Setenv("GUSS_SERVER_PORT", "3000")
	t.Setenv("GUSS_ROUND_COOLDOWN_SECONDS", "5")
	t.Setenv("GUSS_DB_PATH", ":memory:")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Round.Cooldown())
	assert.Equal(t, ":memory:", cfg.DB.Path)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := config.Load("/no/such/config.yaml")
	assert.Error(t, err)
}
