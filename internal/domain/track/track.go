// Package track provides the resolved track entity and its summaries.
package track

import "time"

// Artist is the summary of a performing artist.
type Artist struct {
	ID       string // Catalog artist ID
	Name     string // Display name
	ImageURL string // Artist image (may be empty)
}

// Album is the summary of the album a track belongs to.
type Album struct {
	ID          string // Catalog album ID
	Name        string // Album name
	ImageURL    string // Cover art (may be empty)
	ReleaseDate string // Release date as reported by the catalog (may be empty)
}

// Playlist is the summary of a user playlist.
type Playlist struct {
	ID       string
	Name     string
	ImageURL string
}

// Source is the playable part of a track.
type Source struct {
	Locator  string        // Backend specific locator (file path, spotify URI, ...)
	Duration time.Duration // Track duration
}

// Track is a track with all metadata needed for playback.
type Track struct {
	ID      string   // Catalog track ID
	Name    string   // Display name
	Artists []Artist // Ordered artists
	Album   *Album   // nil if the track has no album
	Source  *Source  // nil if the track cannot be played
}

// Playable reports whether the track has a source the backend can load.
func (t Track) Playable() bool {
	return t.Source != nil && t.Source.Locator != ""
}

// Duration returns the source duration, or zero for unplayable tracks.
func (t Track) Duration() time.Duration {
	if t.Source == nil {
		return 0
	}
	return t.Source.Duration
}

// ArtistNames returns the artist display names in order.
func (t Track) ArtistNames() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}
