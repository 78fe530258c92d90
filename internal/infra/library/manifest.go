package library

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// Manifest describes library content to import.
type Manifest struct {
	Albums    []ManifestAlbum    `yaml:"albums" validate:"dive"`
	Tracks    []ManifestTrack    `yaml:"tracks" validate:"dive"`
	Playlists []ManifestPlaylist `yaml:"playlists" validate:"dive"`
}

// ManifestArtist is an artist credit.
type ManifestArtist struct {
	ID       string `yaml:"id" validate:"required"`
	Name     string `yaml:"name" validate:"required"`
	ImageURL string `yaml:"image_url"`
}

// ManifestTrack is a track. Relative paths are resolved against the manifest
// directory. A zero duration is probed from the file.
type ManifestTrack struct {
	ID         string           `yaml:"id" validate:"required"`
	Name       string           `yaml:"name" validate:"required"`
	Path       string           `yaml:"path"`
	DurationMs int64            `yaml:"duration_ms" validate:"gte=0"`
	Artists    []ManifestArtist `yaml:"artists" validate:"dive"`
}

// ManifestAlbum is an album with its tracks in order. Tracks without artists
// are credited to the album artists.
type ManifestAlbum struct {
	ID          string           `yaml:"id" validate:"required"`
	Name        string           `yaml:"name" validate:"required"`
	ImageURL    string           `yaml:"image_url"`
	ReleaseDate string           `yaml:"release_date"`
	Artists     []ManifestArtist `yaml:"artists" validate:"dive"`
	Tracks      []ManifestTrack  `yaml:"tracks" validate:"dive"`
}

// ManifestPlaylist is a playlist of track IDs.
type ManifestPlaylist struct {
	ID       string   `yaml:"id" validate:"required"`
	Name     string   `yaml:"name" validate:"required"`
	ImageURL string   `yaml:"image_url"`
	Tracks   []string `yaml:"tracks"`
}

// ProbeFunc returns the length of the audio file at path.
type ProbeFunc func(path string) (time.Duration, error)

// ImportStats counts imported items.
type ImportStats struct {
	Albums    int
	Tracks    int
	Playlists int
}

// LoadManifest reads a YAML manifest and resolves relative track paths
// against its directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	for i := range m.Albums {
		for j := range m.Albums[i].Tracks {
			m.Albums[i].Tracks[j].Path = resolvePath(dir, m.Albums[i].Tracks[j].Path)
		}
	}
	for i := range m.Tracks {
		m.Tracks[i].Path = resolvePath(dir, m.Tracks[i].Path)
	}
	return m, nil
}

// ParseManifest parses and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest")
	}
	if err := validator.New().Struct(&m); err != nil {
		return nil, errors.Wrap(err, "manifest validation failed")
	}
	return &m, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Import stores the manifest content. probe may be nil; tracks whose
// duration cannot be determined are stored with a zero duration.
func (c *Catalog) Import(ctx context.Context, m *Manifest, probe ProbeFunc) (ImportStats, error) {
	var stats ImportStats

	for _, a := range m.Albums {
		album := track.Album{ID: a.ID, Name: a.Name, ImageURL: a.ImageURL, ReleaseDate: a.ReleaseDate}
		tracks := make([]track.Track, len(a.Tracks))
		for i, mt := range a.Tracks {
			if len(mt.Artists) == 0 {
				mt.Artists = a.Artists
			}
			tracks[i] = mt.toTrack(probe)
		}
		if err := c.PutAlbum(ctx, album, tracks...); err != nil {
			return stats, err
		}
		stats.Albums++
		stats.Tracks += len(tracks)
	}

	for _, mt := range m.Tracks {
		if err := c.PutTrack(ctx, mt.toTrack(probe)); err != nil {
			return stats, err
		}
		stats.Tracks++
	}

	for _, p := range m.Playlists {
		if err := c.PutPlaylist(ctx, track.Playlist{ID: p.ID, Name: p.Name, ImageURL: p.ImageURL}, p.Tracks...); err != nil {
			return stats, err
		}
		stats.Playlists++
	}

	zlog.Info().Msgf("library: imported: albums=%d tracks=%d playlists=%d", stats.Albums, stats.Tracks, stats.Playlists)
	return stats, nil
}

func (mt ManifestTrack) toTrack(probe ProbeFunc) track.Track {
	t := track.Track{ID: mt.ID, Name: mt.Name}
	for _, a := range mt.Artists {
		t.Artists = append(t.Artists, track.Artist{ID: a.ID, Name: a.Name, ImageURL: a.ImageURL})
	}
	if mt.Path == "" {
		return t
	}

	d := time.Duration(mt.DurationMs) * time.Millisecond
	if d == 0 && probe != nil {
		var err error
		if d, err = probe(mt.Path); err != nil {
			zlog.Warn().Msgf("library: probe failed: track=%s path=%s error=%v", mt.ID, mt.Path, err)
		}
	}
	t.Source = &track.Source{Locator: mt.Path, Duration: d}
	return t
}
