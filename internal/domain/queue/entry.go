package queue

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// ErrEmptyContainer is returned when an album or playlist has no tracks.
var ErrEmptyContainer = errors.New("container has no tracks")

// Entry is one top-level item of the queue.
//
// The set of implementations is closed: TrackEntry, AlbumEntry and PlaylistEntry.
// Consumers switch over all three.
type Entry interface {
	// Len returns the number of tracks addressable inside the entry.
	Len() int
	// Track returns the track at sub index i.
	Track(i int) track.Track
	// Tracks returns the tracks of the entry in order.
	Tracks() []track.Track

	entry()
}

// TrackEntry is a single queued track.
type TrackEntry struct {
	Item track.Track
}

// AlbumEntry is an album expanded to its tracks.
type AlbumEntry struct {
	Album track.Album
	Items []track.Track
}

// PlaylistEntry is a playlist expanded to its tracks.
type PlaylistEntry struct {
	Playlist track.Playlist
	Items    []track.Track
}

// NewTrackEntry creates an entry for a single track.
func NewTrackEntry(t track.Track) TrackEntry {
	return TrackEntry{Item: t}
}

// NewAlbumEntry creates an album entry. It fails with ErrEmptyContainer when items is empty.
func NewAlbumEntry(album track.Album, items []track.Track) (AlbumEntry, error) {
	if len(items) == 0 {
		return AlbumEntry{}, errors.Wrapf(ErrEmptyContainer, "album %s", album.ID)
	}
	return AlbumEntry{Album: album, Items: items}, nil
}

// NewPlaylistEntry creates a playlist entry. It fails with ErrEmptyContainer when items is empty.
func NewPlaylistEntry(playlist track.Playlist, items []track.Track) (PlaylistEntry, error) {
	if len(items) == 0 {
		return PlaylistEntry{}, errors.Wrapf(ErrEmptyContainer, "playlist %s", playlist.ID)
	}
	return PlaylistEntry{Playlist: playlist, Items: items}, nil
}

func (e TrackEntry) Len() int { return 1 }
func (e TrackEntry) Track(_ int) track.Track { return e.Item }
func (e TrackEntry) Tracks() []track.Track { return []track.Track{e.Item} }
func (e TrackEntry) entry() {}

func (e AlbumEntry) Len() int { return len(e.Items) }
func (e AlbumEntry) Track(i int) track.Track { return e.Items[i] }
func (e AlbumEntry) Tracks() []track.Track { return e.Items }
func (e AlbumEntry) entry() {}

func (e PlaylistEntry) Len() int { return len(e.Items) }
func (e PlaylistEntry) Track(i int) track.Track { return e.Items[i] }
func (e PlaylistEntry) Tracks() []track.Track { return e.Items }
func (e PlaylistEntry) entry() {}

// Kind returns the reference kind an entry was resolved from.
func Kind(e Entry) RefKind {
	switch e.(type) {
	case TrackEntry:
		return RefTrack
	case AlbumEntry:
		return RefAlbum
	case PlaylistEntry:
		return RefPlaylist
	default:
		panic("queue: unknown entry type")
	}
}

// Title returns a display title for the entry.
func Title(e Entry) string {
	switch v := e.(type) {
	case TrackEntry:
		return v.Item.Name
	case AlbumEntry:
		return v.Album.Name
	case PlaylistEntry:
		return v.Playlist.Name
	default:
		panic("queue: unknown entry type")
	}
}
