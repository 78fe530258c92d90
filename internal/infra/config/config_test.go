package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  control_token: secret
catalog:
  type: sqlite
  settings:
    path: library.db
backend:
  type: local
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.NotifyTimeout())
	assert.Equal(t, 4, cfg.Playback.ResolveConcurrency)
	assert.True(t, cfg.Playback.AutoAdvanceEnabled())
	assert.Equal(t, time.Duration(0), cfg.Playback.PositionPollInterval())
	assert.False(t, cfg.Catalog.Cache.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Catalog.Cache.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Catalog.Cache.TTL())
	assert.Equal(t, "JP", cfg.Spotify.Market)
	assert.Equal(t, "tapedeck", cfg.MPRIS.Name)
	assert.Equal(t, "library.db", cfg.Catalog.Settings["path"])
	assert.False(t, cfg.UsesSpotify())
}

func TestParse_ExplicitValues(t *testing.T) {
	data := `
server:
  addr: ":9090"
  control_token: secret
  hooks:
    on_started: ["echo started"]
    on_stopped: ["echo stopped", "true"]
playback:
  position_poll_ms: 250
  resolve_concurrency: 8
  auto_advance: false
catalog:
  type: sqlite
  cache:
    enabled: true
    addr: "redis:6379"
    db: 2
    ttl_sec: 30
backend:
  type: local
mpris:
  enabled: true
  name: deck
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"echo started"}, cfg.Server.Hooks.OnStarted)
	assert.Equal(t, []string{"echo stopped", "true"}, cfg.Server.Hooks.OnStopped)
	assert.Equal(t, 250*time.Millisecond, cfg.Playback.PositionPollInterval())
	assert.Equal(t, 8, cfg.Playback.ResolveConcurrency)
	assert.False(t, cfg.Playback.AutoAdvanceEnabled())
	assert.True(t, cfg.Catalog.Cache.Enabled)
	assert.Equal(t, "redis:6379", cfg.Catalog.Cache.Addr)
	assert.Equal(t, 2, cfg.Catalog.Cache.DB)
	assert.Equal(t, 30*time.Second, cfg.Catalog.Cache.TTL())
	assert.True(t, cfg.MPRIS.Enabled)
	assert.Equal(t, "deck", cfg.MPRIS.Name)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "missing control token",
			data: "catalog: {type: sqlite}\nbackend: {type: local}\n",
		},
		{
			name: "unknown catalog type",
			data: "server: {control_token: x}\ncatalog: {type: itunes}\nbackend: {type: local}\n",
		},
		{
			name: "unknown backend type",
			data: "server: {control_token: x}\ncatalog: {type: sqlite}\nbackend: {type: vlc}\n",
		},
		{
			name: "spotify without credentials",
			data: "server: {control_token: x}\ncatalog: {type: spotify}\nbackend: {type: local}\n",
		},
		{
			name: "concurrency out of range",
			data: "server: {control_token: x}\nplayback: {resolve_concurrency: 100}\ncatalog: {type: sqlite}\nbackend: {type: local}\n",
		},
		{
			name: "bad market",
			data: "server: {control_token: x}\ncatalog: {type: sqlite}\nbackend: {type: local}\nspotify: {market: JPN}\n",
		},
		{
			name: "malformed yaml",
			data: "server: [",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SPOTIFY_CLIENT_ID", "")
			t.Setenv("SPOTIFY_CLIENT_SECRET", "")
			t.Setenv("SPOTIFY_REFRESH_TOKEN", "")
			t.Setenv("CONTROL_TOKEN", "")

			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("CONTROL_TOKEN", "from-env")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "refresh")
	t.Setenv("REDIS_PASSWORD", "redis-secret")

	data := "catalog: {type: spotify}\nbackend: {type: spotify}\n"
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Server.ControlToken)
	assert.Equal(t, "id", cfg.Spotify.ClientID)
	assert.Equal(t, "secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "refresh", cfg.Spotify.RefreshToken)
	assert.Equal(t, "redis-secret", cfg.Catalog.Cache.Password)
	assert.True(t, cfg.UsesSpotify())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Catalog.Type)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
