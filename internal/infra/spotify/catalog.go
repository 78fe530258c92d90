package spotify

import (
	"context"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/osa030/tapedeck/internal/app/resolve"
	"github.com/osa030/tapedeck/internal/domain/track"
)

const (
	albumPageLimit    = 50
	playlistPageLimit = 100
)

// Catalog resolves tracks, albums and playlists through the Spotify Web API.
type Catalog struct {
	client *Client
}

// Verify Catalog implements resolve.Catalog at compile time.
var _ resolve.Catalog = (*Catalog)(nil)

// NewCatalog creates a catalog backed by client.
func NewCatalog(client *Client) *Catalog {
	return &Catalog{client: client}
}

// Track implements resolve.Catalog.
func (c *Catalog) Track(ctx context.Context, id string) (*track.Track, error) {
	id = extractID("track", id)

	var result *spotify.FullTrack
	err := c.client.retry(ctx, func() error {
		t, err := c.client.api.GetTrack(ctx, spotify.ID(id), spotify.Market(c.client.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, mapError(err, "track", id)
	}

	t := convertFullTrack(result)
	return &t, nil
}

// TrackArtists implements resolve.Catalog. Artist images are fetched with a
// second request; if it fails the artists are returned without images.
func (c *Catalog) TrackArtists(ctx context.Context, trackID string) ([]track.Artist, error) {
	t, err := c.Track(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if len(t.Artists) == 0 {
		return nil, nil
	}

	ids := make([]spotify.ID, len(t.Artists))
	for i, a := range t.Artists {
		ids[i] = spotify.ID(a.ID)
	}

	var full []*spotify.FullArtist
	err = c.client.retry(ctx, func() error {
		as, err := c.client.api.GetArtists(ctx, ids...)
		if err != nil {
			return err
		}
		full = as
		return nil
	})
	if err != nil {
		return t.Artists, nil
	}

	artists := make([]track.Artist, 0, len(full))
	for _, a := range full {
		if a == nil {
			continue
		}
		artists = append(artists, track.Artist{
			ID:       string(a.ID),
			Name:     a.Name,
			ImageURL: firstImage(a.Images),
		})
	}
	return artists, nil
}

// Album implements resolve.Catalog.
func (c *Catalog) Album(ctx context.Context, id string) (*track.Album, error) {
	id = extractID("album", id)

	var result *spotify.FullAlbum
	err := c.client.retry(ctx, func() error {
		a, err := c.client.api.GetAlbum(ctx, spotify.ID(id), spotify.Market(c.client.market))
		if err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, mapError(err, "album", id)
	}

	a := convertAlbum(result.SimpleAlbum)
	return &a, nil
}

// AlbumTracks implements resolve.Catalog.
func (c *Catalog) AlbumTracks(ctx context.Context, albumID string) ([]track.Track, error) {
	albumID = extractID("album", albumID)

	var tracks []track.Track
	offset := 0
	for {
		var page *spotify.SimpleTrackPage
		err := c.client.retry(ctx, func() error {
			p, err := c.client.api.GetAlbumTracks(ctx, spotify.ID(albumID),
				spotify.Limit(albumPageLimit),
				spotify.Offset(offset),
				spotify.Market(c.client.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, mapError(err, "album", albumID)
		}

		for _, t := range page.Tracks {
			tracks = append(tracks, convertSimpleTrack(t))
		}

		if len(page.Tracks) < albumPageLimit {
			break
		}
		offset += albumPageLimit
	}

	return tracks, nil
}

// Playlist implements resolve.Catalog.
func (c *Catalog) Playlist(ctx context.Context, id string) (*track.Playlist, error) {
	id = extractID("playlist", id)

	var result *spotify.FullPlaylist
	err := c.client.retry(ctx, func() error {
		p, err := c.client.api.GetPlaylist(ctx, spotify.ID(id), spotify.Fields("id,name,images"))
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, mapError(err, "playlist", id)
	}

	return &track.Playlist{
		ID:       string(result.ID),
		Name:     result.Name,
		ImageURL: firstImage(result.Images),
	}, nil
}

// PlaylistTracks implements resolve.Catalog. Episodes and removed tracks are skipped.
func (c *Catalog) PlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error) {
	playlistID = extractID("playlist", playlistID)

	var tracks []track.Track
	offset := 0
	for {
		var page *spotify.PlaylistItemPage
		err := c.client.retry(ctx, func() error {
			p, err := c.client.api.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(playlistPageLimit),
				spotify.Offset(offset),
				spotify.Market(c.client.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, mapError(err, "playlist", playlistID)
		}

		for _, item := range page.Items {
			// Only process tracks (exclude episodes)
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				tracks = append(tracks, convertFullTrack(item.Track.Track))
			}
		}

		if len(page.Items) < playlistPageLimit {
			break
		}
		offset += playlistPageLimit
	}

	return tracks, nil
}

// convertFullTrack converts a Spotify FullTrack to a domain Track.
// Tracks the API reports as unplayable in the market get no source.
func convertFullTrack(t *spotify.FullTrack) track.Track {
	out := convertSimpleTrack(t.SimpleTrack)
	album := convertAlbum(t.Album)
	out.Album = &album
	if t.IsPlayable != nil && !*t.IsPlayable {
		out.Source = nil
	}
	return out
}

// convertSimpleTrack converts a Spotify SimpleTrack to a domain Track without album.
func convertSimpleTrack(t spotify.SimpleTrack) track.Track {
	artists := make([]track.Artist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = track.Artist{ID: string(a.ID), Name: a.Name}
	}

	return track.Track{
		ID:      string(t.ID),
		Name:    t.Name,
		Artists: artists,
		Source: &track.Source{
			Locator:  trackURI(t.ID),
			Duration: time.Duration(t.Duration) * time.Millisecond,
		},
	}
}

func convertAlbum(a spotify.SimpleAlbum) track.Album {
	return track.Album{
		ID:          string(a.ID),
		Name:        a.Name,
		ImageURL:    firstImage(a.Images),
		ReleaseDate: a.ReleaseDate,
	}
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
