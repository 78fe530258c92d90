package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tapedeck/internal/app/resolve"
	"github.com/osa030/tapedeck/internal/app/resolve/resolvetest"
	"github.com/osa030/tapedeck/internal/domain/track"
)

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (s *memStore) get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, errMiss
	}
	return v, nil
}

func (s *memStore) set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func TestCatalog_CachesHits(t *testing.T) {
	mem := resolvetest.New().
		AddTrack(resolvetest.PlayableTrack("t1")).
		AddArtists("t1", track.Artist{ID: "ar1", Name: "Band"})
	s := newMemStore()
	c := newCatalog(mem, s, time.Minute)
	ctx := context.Background()

	first, err := c.Track(ctx, "t1")
	require.NoError(t, err)
	second, err := c.Track(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mem.Calls("Track:t1"))
	assert.Equal(t, time.Minute, s.ttls["tapedeck:catalog:track:t1"])

	for range 3 {
		artists, err := c.TrackArtists(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, []string{"Band"}, (&track.Track{Artists: artists}).ArtistNames())
	}
	assert.Equal(t, 1, mem.Calls("TrackArtists:t1"))
}

func TestCatalog_DoesNotCacheErrors(t *testing.T) {
	mem := resolvetest.New()
	s := newMemStore()
	c := newCatalog(mem, s, time.Minute)
	ctx := context.Background()

	_, err := c.Track(ctx, "missing")
	assert.ErrorIs(t, err, resolve.ErrNotFound)
	_, err = c.Track(ctx, "missing")
	assert.ErrorIs(t, err, resolve.ErrNotFound)

	assert.Equal(t, 2, mem.Calls("Track:missing"))
	assert.Zero(t, s.len())
}

func TestCatalog_StoreFailuresFallThrough(t *testing.T) {
	mem := resolvetest.New().AddTrack(resolvetest.PlayableTrack("t1"))
	s := newMemStore()
	s.getErr = errors.New("connection refused")
	s.setErr = errors.New("connection refused")
	c := newCatalog(mem, s, time.Minute)

	for range 2 {
		got, err := c.Track(context.Background(), "t1")
		require.NoError(t, err)
		assert.Equal(t, "t1", got.ID)
	}
	assert.Equal(t, 2, mem.Calls("Track:t1"))
}

func TestCatalog_CorruptEntryReloads(t *testing.T) {
	mem := resolvetest.New().AddTrack(resolvetest.PlayableTrack("t1"))
	s := newMemStore()
	s.data["tapedeck:catalog:track:t1"] = []byte("{not json")
	c := newCatalog(mem, s, time.Minute)

	got, err := c.Track(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, got.Playable())
	assert.Equal(t, 1, mem.Calls("Track:t1"))
}

func TestCatalog_Containers(t *testing.T) {
	mem := resolvetest.New().
		AddAlbumOf("al1", 3).
		AddPlaylist(track.Playlist{ID: "pl1", Name: "Mix"}, resolvetest.PlayableTrack("p1"))
	s := newMemStore()
	c := newCatalog(mem, s, time.Minute)
	ctx := context.Background()

	for range 2 {
		album, err := c.Album(ctx, "al1")
		require.NoError(t, err)
		assert.Equal(t, "Album al1", album.Name)

		tracks, err := c.AlbumTracks(ctx, "al1")
		require.NoError(t, err)
		require.Len(t, tracks, 3)
		assert.Equal(t, "al1-2", tracks[2].ID)

		pl, err := c.Playlist(ctx, "pl1")
		require.NoError(t, err)
		assert.Equal(t, "Mix", pl.Name)

		items, err := c.PlaylistTracks(ctx, "pl1")
		require.NoError(t, err)
		require.Len(t, items, 1)
	}
	assert.Equal(t, 4, s.len())
}

func TestCatalog_Redis(t *testing.T) {
	addr := os.Getenv("TAPEDECK_TEST_REDIS")
	if addr == "" {
		t.Skip("TAPEDECK_TEST_REDIS not set")
	}

	id := uuid.NewString()
	mem := resolvetest.New().AddTrack(resolvetest.PlayableTrack(id))
	c, err := New(context.Background(), mem, Config{Addr: addr, TTL: 10 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	for range 2 {
		got, err := c.Track(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, time.Minute, got.Duration())
	}
	assert.Equal(t, 1, mem.Calls("Track:"+id))
}
