// Package library provides a local music library catalog stored in SQLite.
package library

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/osa030/tapedeck/internal/app/resolve"
	"github.com/osa030/tapedeck/internal/domain/track"
)

// Config configures the library catalog.
type Config struct {
	Path string `mapstructure:"path" default:"library.db" validate:"required"`
}

// DecodeConfig decodes catalog settings from the config file.
func DecodeConfig(settings map[string]any) (Config, error) {
	var cfg Config
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, errors.Wrap(err, "validation failed")
	}
	return cfg, nil
}

// Catalog is a resolve.Catalog over a SQLite database. Tracks without a
// path are listed but cannot be played.
type Catalog struct {
	db *sql.DB
}

// Verify Catalog implements resolve.Catalog at compile time.
var _ resolve.Catalog = (*Catalog)(nil)

// Open opens (and creates if needed) the library database at path.
// ":memory:" opens a private in-memory library.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open library %s", path)
	}
	// One connection keeps in-memory databases and connection pragmas consistent.
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	zlog.Debug().Msgf("library: opened: path=%s", path)
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

const trackColumns = `
	t.id, t.name, t.path, t.duration_ms,
	a.id, a.name, a.image_url, a.release_date
`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (track.Track, error) {
	var (
		t          track.Track
		path       sql.NullString
		durationMs int64
		albumID    sql.NullString
		albumName  sql.NullString
		albumImage sql.NullString
		albumDate  sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Name, &path, &durationMs, &albumID, &albumName, &albumImage, &albumDate); err != nil {
		return t, err
	}

	if path.Valid && path.String != "" {
		t.Source = &track.Source{
			Locator:  path.String,
			Duration: time.Duration(durationMs) * time.Millisecond,
		}
	}
	if albumID.Valid {
		t.Album = &track.Album{
			ID:          albumID.String,
			Name:        nullString(albumName),
			ImageURL:    nullString(albumImage),
			ReleaseDate: nullString(albumDate),
		}
	}
	return t, nil
}

// Track implements resolve.Catalog.
func (c *Catalog) Track(ctx context.Context, id string) (*track.Track, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+trackColumns+`
		FROM tracks t
		LEFT JOIN albums a ON a.id = t.album_id
		WHERE t.id = ?
	`, id)

	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(resolve.ErrNotFound, "track %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query track %s", id)
	}

	artists, err := c.TrackArtists(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Artists = artists
	return &t, nil
}

// TrackArtists implements resolve.Catalog.
func (c *Catalog) TrackArtists(ctx context.Context, trackID string) ([]track.Artist, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT ar.id, ar.name, ar.image_url
		FROM track_artists ta
		JOIN artists ar ON ar.id = ta.artist_id
		WHERE ta.track_id = ?
		ORDER BY ta.position
	`, trackID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query artists of track %s", trackID)
	}
	defer rows.Close()

	var artists []track.Artist
	for rows.Next() {
		var a track.Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.ImageURL); err != nil {
			return nil, errors.Wrap(err, "failed to scan artist")
		}
		artists = append(artists, a)
	}
	return artists, rows.Err()
}

// Album implements resolve.Catalog.
func (c *Catalog) Album(ctx context.Context, id string) (*track.Album, error) {
	var a track.Album
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, image_url, release_date FROM albums WHERE id = ?
	`, id).Scan(&a.ID, &a.Name, &a.ImageURL, &a.ReleaseDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(resolve.ErrNotFound, "album %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query album %s", id)
	}
	return &a, nil
}

// AlbumTracks implements resolve.Catalog. Artists are left for the resolver to hydrate.
func (c *Catalog) AlbumTracks(ctx context.Context, albumID string) ([]track.Track, error) {
	if _, err := c.Album(ctx, albumID); err != nil {
		return nil, err
	}
	return c.queryTracks(ctx, `
		SELECT `+trackColumns+`
		FROM tracks t
		LEFT JOIN albums a ON a.id = t.album_id
		WHERE t.album_id = ?
		ORDER BY t.album_position, t.name COLLATE NOCASE
	`, albumID)
}

// Playlist implements resolve.Catalog.
func (c *Catalog) Playlist(ctx context.Context, id string) (*track.Playlist, error) {
	var p track.Playlist
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, image_url FROM playlists WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(resolve.ErrNotFound, "playlist %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query playlist %s", id)
	}
	return &p, nil
}

// PlaylistTracks implements resolve.Catalog. Entries whose track was removed
// from the library are kept as unplayable tracks.
func (c *Catalog) PlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error) {
	if _, err := c.Playlist(ctx, playlistID); err != nil {
		return nil, err
	}
	return c.queryTracks(ctx, `
		SELECT
			pt.track_id, COALESCE(t.name, ''), t.path, COALESCE(t.duration_ms, 0),
			a.id, a.name, a.image_url, a.release_date
		FROM playlist_tracks pt
		LEFT JOIN tracks t ON t.id = pt.track_id
		LEFT JOIN albums a ON a.id = t.album_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position
	`, playlistID)
}

func (c *Catalog) queryTracks(ctx context.Context, query string, args ...any) ([]track.Track, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tracks")
	}
	defer rows.Close()

	var tracks []track.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan track")
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}
