// Package resolve turns queue references into fully hydrated queue entries.
package resolve

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tapedeck/internal/domain/queue"
	"github.com/osa030/tapedeck/internal/domain/track"
)

// Errors
var (
	// ErrNotFound is returned when a referenced ID no longer exists in the catalog.
	ErrNotFound = errors.New("not found")
	// ErrEmptyContainer is returned when an album or playlist resolves to zero tracks.
	ErrEmptyContainer = queue.ErrEmptyContainer
)

// Catalog is the read-only data store that provides playback metadata.
// Implementations return ErrNotFound (possibly wrapped) for unknown IDs.
// Tracks returned by AlbumTracks and PlaylistTracks may be partially hydrated.
type Catalog interface {
	// Track returns a single track.
	Track(ctx context.Context, id string) (*track.Track, error)
	// TrackArtists returns the artists of a track in credit order.
	TrackArtists(ctx context.Context, trackID string) ([]track.Artist, error)
	// Album returns the album summary.
	Album(ctx context.Context, id string) (*track.Album, error)
	// AlbumTracks returns the album tracks in stored order.
	AlbumTracks(ctx context.Context, albumID string) ([]track.Track, error)
	// Playlist returns the playlist summary.
	Playlist(ctx context.Context, id string) (*track.Playlist, error)
	// PlaylistTracks returns the playlist tracks in stored order.
	PlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error)
}
