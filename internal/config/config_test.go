package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "your-secret-api-key", cfg.Auth.APIKey)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "./cache_payloads", cfg.Cache.Dir)
	assert.Equal(t, 1024, cfg.Cache.MaxEntries)
	assert.Equal(t, 15*time.Second, cfg.Timeout())
	assert.Equal(t, 15*time.Minute, cfg.TTLGames())
	assert.Equal(t, time.Hour, cfg.TTLTable())
	assert.Equal(t, 2*time.Hour, cfg.TTLTeams())
	assert.Equal(t, 24*time.Hour, cfg.TTLFont())
	assert.Equal(t, 5*time.Minute, cfg.NegativeTTL())
	assert.Equal(t, int64(10*1024*1024), cfg.Cache.SnapshotMaxBytes)
	assert.Empty(t, cfg.Prewarm.ClubID)
	assert.Equal(t, 5*time.Minute, cfg.PrewarmInterval())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
auth:
  api_key: sekrit
cache:
  ttl_games_seconds: 60
prewarm:
  club_id: "00ES8GNBDC000035VV0AG08LVUPGND5I"
  interval_seconds: 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Auth.APIKey)
	assert.Equal(t, time.Minute, cfg.TTLGames())
	assert.Equal(t, "00ES8GNBDC000035VV0AG08LVUPGND5I", cfg.Prewarm.ClubID)
	assert.Equal(t, 2*time.Minute, cfg.PrewarmInterval())
	// Untouched knobs keep their defaults.
	assert.Equal(t, 1024, cfg.Cache.MaxEntries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"empty api key", func(c *Config) { c.Auth.APIKey = "" }},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"empty cache dir", func(c *Config) { c.Cache.Dir = "" }},
		{"zero max entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"zero games ttl", func(c *Config) { c.Cache.TTLGamesSeconds = 0 }},
		{"prewarm without interval", func(c *Config) {
			c.Prewarm.ClubID = "X"
			c.Prewarm.IntervalSeconds = 0
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base.Validate())
}
