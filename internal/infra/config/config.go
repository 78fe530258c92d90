// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Catalog and backend types.
const (
	CatalogSQLite  = "sqlite"
	CatalogSpotify = "spotify"
	BackendLocal   = "local"
	BackendSpotify = "spotify"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Playback PlaybackConfig `yaml:"playback"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Backend  BackendConfig  `yaml:"backend"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	MPRIS    MPRISConfig    `yaml:"mpris"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr            string      `yaml:"addr" default:":8080"`
	ControlToken    string      `yaml:"control_token" validate:"required"`
	NotifyTimeoutMs int         `yaml:"notify_timeout_ms" default:"500" validate:"gte=0,lte=10000"`
	Hooks           HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"` // Shell commands run once the server listens
	OnStopped []string `yaml:"on_stopped"` // Shell commands run after shutdown
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	PositionPollMs     int   `yaml:"position_poll_ms" validate:"gte=0,lte=60000"`
	ResolveConcurrency int   `yaml:"resolve_concurrency" default:"4" validate:"gte=1,lte=64"`
	AutoAdvance        *bool `yaml:"auto_advance" default:"true"`
}

// CatalogConfig represents the track catalog configuration.
type CatalogConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=sqlite spotify"`
	Settings map[string]any `yaml:"settings"`
	Cache    CacheConfig    `yaml:"cache"`
}

// CacheConfig represents the Redis catalog cache configuration.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	TTLSec   int    `yaml:"ttl_sec" default:"600" validate:"gte=1"`
}

// BackendConfig represents the playback backend configuration.
type BackendConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=local spotify"`
	Settings map[string]any `yaml:"settings"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// MPRISConfig represents the desktop media key integration.
type MPRISConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name" default:"tapedeck"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("CONTROL_TOKEN"); v != "" {
		c.Server.ControlToken = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Catalog.Cache.Password = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.UsesSpotify() {
		if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
			return errors.New("spotify client_id, client_secret and refresh_token are required for the spotify catalog or backend")
		}
	}

	return nil
}

// UsesSpotify reports whether the catalog or the backend talks to Spotify.
func (c *Config) UsesSpotify() bool {
	return c.Catalog.Type == CatalogSpotify || c.Backend.Type == BackendSpotify
}

// AutoAdvanceEnabled reports whether playback advances when a track finishes.
func (p PlaybackConfig) AutoAdvanceEnabled() bool {
	return p.AutoAdvance == nil || *p.AutoAdvance
}

// PositionPollInterval returns the backend position polling interval. Zero disables polling.
func (p PlaybackConfig) PositionPollInterval() time.Duration {
	return time.Duration(p.PositionPollMs) * time.Millisecond
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// NotifyTimeout returns the per-subscriber send timeout for state streams.
func (s ServerConfig) NotifyTimeout() time.Duration {
	return time.Duration(s.NotifyTimeoutMs) * time.Millisecond
}
