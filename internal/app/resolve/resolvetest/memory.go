// Package resolvetest provides an in-memory catalog for tests.
package resolvetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tapedeck/internal/app/resolve"
	"github.com/osa030/tapedeck/internal/domain/track"
)

// Catalog is an in-memory resolve.Catalog.
type Catalog struct {
	mu sync.RWMutex

	tracks         map[string]track.Track
	artists        map[string][]track.Artist
	albums         map[string]track.Album
	albumTracks    map[string][]string
	playlists      map[string]track.Playlist
	playlistTracks map[string][]string

	failing map[string]error // track ID -> error returned by Track/TrackArtists
	calls   map[string]int
}

// Verify Catalog implements resolve.Catalog at compile time.
var _ resolve.Catalog = (*Catalog)(nil)

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		tracks:         make(map[string]track.Track),
		artists:        make(map[string][]track.Artist),
		albums:         make(map[string]track.Album),
		albumTracks:    make(map[string][]string),
		playlists:      make(map[string]track.Playlist),
		playlistTracks: make(map[string][]string),
		failing:        make(map[string]error),
		calls:          make(map[string]int),
	}
}

// PlayableTrack builds a playable track with a one minute source.
func PlayableTrack(id string) track.Track {
	return track.Track{
		ID:     id,
		Name:   "Track " + id,
		Source: &track.Source{Locator: "/music/" + id + ".mp3", Duration: time.Minute},
	}
}

// AddTrack stores a track.
func (c *Catalog) AddTrack(t track.Track) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks[t.ID] = t
	return c
}

// AddArtists stores the artists of a track.
func (c *Catalog) AddArtists(trackID string, artists ...track.Artist) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artists[trackID] = artists
	return c
}

// AddAlbum stores an album with the given member tracks. Tracks are stored too.
func (c *Catalog) AddAlbum(a track.Album, items ...track.Track) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.albums[a.ID] = a
	ids := make([]string, 0, len(items))
	for _, t := range items {
		c.tracks[t.ID] = t
		ids = append(ids, t.ID)
	}
	c.albumTracks[a.ID] = ids
	return c
}

// AddPlaylist stores a playlist with the given member tracks. Tracks are stored too.
func (c *Catalog) AddPlaylist(p track.Playlist, items ...track.Track) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlists[p.ID] = p
	ids := make([]string, 0, len(items))
	for _, t := range items {
		c.tracks[t.ID] = t
		ids = append(ids, t.ID)
	}
	c.playlistTracks[p.ID] = ids
	return c
}

// AddAlbumOf stores an album with n playable tracks named "<albumID>-<i>".
func (c *Catalog) AddAlbumOf(albumID string, n int) *Catalog {
	items := make([]track.Track, n)
	for i := range items {
		items[i] = PlayableTrack(fmt.Sprintf("%s-%d", albumID, i))
	}
	return c.AddAlbum(track.Album{ID: albumID, Name: "Album " + albumID}, items...)
}

// Fail makes Track and TrackArtists lookups for id return err.
func (c *Catalog) Fail(id string, err error) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[id] = err
	return c
}

// Remove deletes a track so that later lookups return resolve.ErrNotFound.
func (c *Catalog) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tracks, id)
}

// Calls returns how many times a method was called, keyed "Method:id".
func (c *Catalog) Calls(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[key]
}

func (c *Catalog) Track(_ context.Context, id string) (*track.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["Track:"+id]++
	if err := c.failing[id]; err != nil {
		return nil, err
	}
	t, ok := c.tracks[id]
	if !ok {
		return nil, errors.Wrapf(resolve.ErrNotFound, "track %s", id)
	}
	return &t, nil
}

func (c *Catalog) TrackArtists(_ context.Context, trackID string) ([]track.Artist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["TrackArtists:"+trackID]++
	if err := c.failing[trackID]; err != nil {
		return nil, err
	}
	return c.artists[trackID], nil
}

func (c *Catalog) Album(_ context.Context, id string) (*track.Album, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.albums[id]
	if !ok {
		return nil, errors.Wrapf(resolve.ErrNotFound, "album %s", id)
	}
	return &a, nil
}

func (c *Catalog) AlbumTracks(_ context.Context, albumID string) ([]track.Track, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids, ok := c.albumTracks[albumID]
	if !ok {
		return nil, errors.Wrapf(resolve.ErrNotFound, "album %s", albumID)
	}
	return c.collectLocked(ids), nil
}

func (c *Catalog) Playlist(_ context.Context, id string) (*track.Playlist, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.playlists[id]
	if !ok {
		return nil, errors.Wrapf(resolve.ErrNotFound, "playlist %s", id)
	}
	return &p, nil
}

func (c *Catalog) PlaylistTracks(_ context.Context, playlistID string) ([]track.Track, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids, ok := c.playlistTracks[playlistID]
	if !ok {
		return nil, errors.Wrapf(resolve.ErrNotFound, "playlist %s", playlistID)
	}
	return c.collectLocked(ids), nil
}

// collectLocked returns member tracks without their sources, the way a
// container listing in a real store does not join the source table.
func (c *Catalog) collectLocked(ids []string) []track.Track {
	out := make([]track.Track, 0, len(ids))
	for _, id := range ids {
		t, ok := c.tracks[id]
		if !ok {
			t = track.Track{ID: id}
		}
		t.Source = nil
		t.Artists = nil
		out = append(out, t)
	}
	return out
}
