package resolve_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tapedeck/internal/app/resolve"
	"github.com/osa030/tapedeck/internal/app/resolve/resolvetest"
	"github.com/osa030/tapedeck/internal/domain/queue"
	"github.com/osa030/tapedeck/internal/domain/track"
)

func TestResolver_ResolveTrack(t *testing.T) {
	cat := resolvetest.New().
		AddTrack(resolvetest.PlayableTrack("7")).
		AddArtists("7", track.Artist{ID: "a1", Name: "Artist"})
	r := resolve.NewResolver(cat, resolve.Config{})

	e, err := r.Resolve(context.Background(), queue.TrackRef("7"))
	require.NoError(t, err)

	te, ok := e.(queue.TrackEntry)
	require.True(t, ok)
	assert.Equal(t, "7", te.Item.ID)
	assert.True(t, te.Item.Playable())
	assert.Equal(t, []string{"Artist"}, te.Item.ArtistNames())
	assert.Equal(t, 1, cat.Calls("Track:7"), "single tracks are fetched once")
}

func TestResolver_NotFound(t *testing.T) {
	r := resolve.NewResolver(resolvetest.New(), resolve.Config{})

	tests := []queue.Ref{
		queue.TrackRef("missing"),
		queue.AlbumRef("missing"),
		queue.PlaylistRef("missing"),
	}
	for _, ref := range tests {
		t.Run(ref.String(), func(t *testing.T) {
			_, err := r.Resolve(context.Background(), ref)
			assert.ErrorIs(t, err, resolve.ErrNotFound)
		})
	}
}

func TestResolver_ResolveAlbum(t *testing.T) {
	cat := resolvetest.New().AddAlbumOf("3", 4)
	r := resolve.NewResolver(cat, resolve.Config{Concurrency: 2})

	e, err := r.Resolve(context.Background(), queue.AlbumRef("3"))
	require.NoError(t, err)

	ae, ok := e.(queue.AlbumEntry)
	require.True(t, ok)
	assert.Equal(t, "Album 3", ae.Album.Name)
	require.Len(t, ae.Items, 4)
	for i, it := range ae.Items {
		assert.Equal(t, "3-"+string(rune('0'+i)), it.ID, "stored order is kept")
		assert.True(t, it.Playable(), "member sources are hydrated")
		require.NotNil(t, it.Album)
		assert.Equal(t, "3", it.Album.ID)
	}
}

func TestResolver_EmptyContainer(t *testing.T) {
	cat := resolvetest.New().
		AddAlbum(track.Album{ID: "empty"}).
		AddPlaylist(track.Playlist{ID: "empty"})
	r := resolve.NewResolver(cat, resolve.Config{})

	_, err := r.Resolve(context.Background(), queue.AlbumRef("empty"))
	assert.ErrorIs(t, err, resolve.ErrEmptyContainer)

	_, err = r.Resolve(context.Background(), queue.PlaylistRef("empty"))
	assert.ErrorIs(t, err, resolve.ErrEmptyContainer)
}

func TestResolver_HydrationFailureKeepsTrack(t *testing.T) {
	cat := resolvetest.New().
		AddPlaylist(track.Playlist{ID: "p", Name: "Mix"},
			resolvetest.PlayableTrack("ok"),
			resolvetest.PlayableTrack("broken"),
			track.Track{ID: "nosource", Name: "No source"},
		).
		AddArtists("ok", track.Artist{Name: "A"}).
		Fail("broken", errors.New("db timeout"))
	r := resolve.NewResolver(cat, resolve.Config{})

	e, err := r.Resolve(context.Background(), queue.PlaylistRef("p"))
	require.NoError(t, err)

	pe, ok := e.(queue.PlaylistEntry)
	require.True(t, ok)
	require.Len(t, pe.Items, 3)

	assert.True(t, pe.Items[0].Playable())
	assert.Equal(t, []string{"A"}, pe.Items[0].ArtistNames())
	assert.Equal(t, "broken", pe.Items[1].ID)
	assert.False(t, pe.Items[1].Playable(), "failed hydration leaves the track unplayable")
	assert.False(t, pe.Items[2].Playable())
}

func TestResolver_ResolveAllKeepsOrder(t *testing.T) {
	cat := resolvetest.New().
		AddTrack(resolvetest.PlayableTrack("1")).
		AddAlbumOf("2", 2).
		AddTrack(resolvetest.PlayableTrack("3"))
	r := resolve.NewResolver(cat, resolve.Config{Concurrency: 3})

	entries, err := r.ResolveAll(context.Background(), []queue.Ref{
		queue.TrackRef("1"), queue.AlbumRef("2"), queue.TrackRef("3"),
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, queue.RefTrack, queue.Kind(entries[0]))
	assert.Equal(t, queue.RefAlbum, queue.Kind(entries[1]))
	assert.Equal(t, "3", entries[2].Track(0).ID)
	for _, e := range entries {
		assert.Positive(t, e.Len(), "no entry is ever empty")
	}
}

func TestResolver_ResolveAllFailsAsAWhole(t *testing.T) {
	cat := resolvetest.New().AddTrack(resolvetest.PlayableTrack("1"))
	r := resolve.NewResolver(cat, resolve.Config{})

	entries, err := r.ResolveAll(context.Background(), []queue.Ref{
		queue.TrackRef("1"), queue.AlbumRef("gone"),
	})
	assert.ErrorIs(t, err, resolve.ErrNotFound)
	assert.Nil(t, entries)
}
