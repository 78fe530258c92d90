// Package cache provides a Redis-backed caching decorator for catalogs.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/app/resolve"
	"github.com/osa030/tapedeck/internal/domain/track"
)

const keyPrefix = "tapedeck:catalog:"

// errMiss is returned by a store when the key does not exist.
var errMiss = errors.New("cache miss")

// store is the key/value subset of Redis the cache needs.
type store interface {
	get(ctx context.Context, key string) ([]byte, error)
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Catalog caches successful lookups of an underlying catalog in Redis.
// Not-found results and errors are never cached. Redis failures fall
// through to the underlying catalog.
type Catalog struct {
	next   resolve.Catalog
	store  store
	ttl    time.Duration
	client *redis.Client
}

// Verify Catalog implements resolve.Catalog at compile time.
var _ resolve.Catalog = (*Catalog)(nil)

// New connects to Redis and wraps next.
func New(ctx context.Context, next resolve.Catalog, cfg Config) (*Catalog, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis %s", cfg.Addr)
	}

	zlog.Debug().Msgf("cache: connected: addr=%s db=%d ttl=%s", cfg.Addr, cfg.DB, cfg.TTL)
	c := newCatalog(next, redisStore{client: client}, cfg.TTL)
	c.client = client
	return c, nil
}

func newCatalog(next resolve.Catalog, s store, ttl time.Duration) *Catalog {
	return &Catalog{next: next, store: s, ttl: ttl}
}

// Close closes the Redis connection.
func (c *Catalog) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Track implements resolve.Catalog.
func (c *Catalog) Track(ctx context.Context, id string) (*track.Track, error) {
	return cached(ctx, c, key("track", id), func() (*track.Track, error) {
		return c.next.Track(ctx, id)
	})
}

// TrackArtists implements resolve.Catalog.
func (c *Catalog) TrackArtists(ctx context.Context, trackID string) ([]track.Artist, error) {
	return cached(ctx, c, key("track_artists", trackID), func() ([]track.Artist, error) {
		return c.next.TrackArtists(ctx, trackID)
	})
}

// Album implements resolve.Catalog.
func (c *Catalog) Album(ctx context.Context, id string) (*track.Album, error) {
	return cached(ctx, c, key("album", id), func() (*track.Album, error) {
		return c.next.Album(ctx, id)
	})
}

// AlbumTracks implements resolve.Catalog.
func (c *Catalog) AlbumTracks(ctx context.Context, albumID string) ([]track.Track, error) {
	return cached(ctx, c, key("album_tracks", albumID), func() ([]track.Track, error) {
		return c.next.AlbumTracks(ctx, albumID)
	})
}

// Playlist implements resolve.Catalog.
func (c *Catalog) Playlist(ctx context.Context, id string) (*track.Playlist, error) {
	return cached(ctx, c, key("playlist", id), func() (*track.Playlist, error) {
		return c.next.Playlist(ctx, id)
	})
}

// PlaylistTracks implements resolve.Catalog.
func (c *Catalog) PlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error) {
	return cached(ctx, c, key("playlist_tracks", playlistID), func() ([]track.Track, error) {
		return c.next.PlaylistTracks(ctx, playlistID)
	})
}

func key(kind, id string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, kind, id)
}

func cached[T any](ctx context.Context, c *Catalog, key string, load func() (T, error)) (T, error) {
	var v T

	data, err := c.store.get(ctx, key)
	switch {
	case err == nil:
		uerr := json.Unmarshal(data, &v)
		if uerr == nil {
			return v, nil
		}
		zlog.Warn().Msgf("cache: discarding corrupt entry: key=%s error=%v", key, uerr)
	case !errors.Is(err, errMiss):
		zlog.Warn().Msgf("cache: get failed: key=%s error=%v", key, err)
	}

	v, err = load()
	if err != nil {
		return v, err
	}

	data, err = json.Marshal(v)
	if err != nil {
		zlog.Warn().Msgf("cache: marshal failed: key=%s error=%v", key, err)
		return v, nil
	}
	if err := c.store.set(ctx, key, data, c.ttl); err != nil {
		zlog.Warn().Msgf("cache: set failed: key=%s error=%v", key, err)
	}
	return v, nil
}

type redisStore struct {
	client *redis.Client
}

func (s redisStore) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errMiss
	}
	return data, err
}

func (s redisStore) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}
