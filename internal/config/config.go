// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Prewarm PrewarmConfig `mapstructure:"prewarm"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// CacheConfig governs the HTTP cache: content TTLs per page class, the entry
// bound and the snapshot persistence limits.
type CacheConfig struct {
	Dir                string `mapstructure:"dir"`
	MaxEntries         int    `mapstructure:"max_entries"`
	TTLGamesSeconds    int    `mapstructure:"ttl_games_seconds"`
	TTLTableSeconds    int    `mapstructure:"ttl_table_seconds"`
	TTLTeamsSeconds    int    `mapstructure:"ttl_teams_seconds"`
	TTLFontSeconds     int    `mapstructure:"ttl_font_seconds"`
	NegativeTTLSeconds int    `mapstructure:"negative_ttl_seconds"`
	SnapshotMaxBytes   int64  `mapstructure:"snapshot_max_bytes"`
}

// PrewarmConfig selects the club kept warm in the background. An empty club
// ID disables prewarming.
type PrewarmConfig struct {
	ClubID          string `mapstructure:"club_id"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FUSSBALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.api_key", "your-secret-api-key")
	v.SetDefault("logging.development", true)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("cache.dir", "./cache_payloads")
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("cache.ttl_games_seconds", 900)
	v.SetDefault("cache.ttl_table_seconds", 3600)
	v.SetDefault("cache.ttl_teams_seconds", 7200)
	v.SetDefault("cache.ttl_font_seconds", 86400)
	v.SetDefault("cache.negative_ttl_seconds", 300)
	v.SetDefault("cache.snapshot_max_bytes", 10*1024*1024)
	v.SetDefault("prewarm.club_id", "")
	v.SetDefault("prewarm.interval_seconds", 300)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must be set")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0")
	}
	if c.Cache.TTLGamesSeconds <= 0 || c.Cache.TTLTableSeconds <= 0 ||
		c.Cache.TTLTeamsSeconds <= 0 || c.Cache.TTLFontSeconds <= 0 {
		return fmt.Errorf("cache TTLs must be > 0")
	}
	if c.Prewarm.ClubID != "" && c.Prewarm.IntervalSeconds <= 0 {
		return fmt.Errorf("prewarm.interval_seconds must be > 0 when prewarm.club_id is set")
	}
	return nil
}

// Duration helpers keep the second-based config fields out of call sites.

func (c Config) TTLGames() time.Duration { return time.Duration(c.Cache.TTLGamesSeconds) * time.Second }
func (c Config) TTLTable() time.Duration { return time.Duration(c.Cache.TTLTableSeconds) * time.Second }
func (c Config) TTLTeams() time.Duration { return time.Duration(c.Cache.TTLTeamsSeconds) * time.Second }
func (c Config) TTLFont() time.Duration  { return time.Duration(c.Cache.TTLFontSeconds) * time.Second }

func (c Config) NegativeTTL() time.Duration {
	return time.Duration(c.Cache.NegativeTTLSeconds) * time.Second
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func (c Config) PrewarmInterval() time.Duration {
	return time.Duration(c.Prewarm.IntervalSeconds) * time.Second
}
