package library

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// PutAlbum inserts or replaces an album together with its tracks, in order.
func (c *Catalog) PutAlbum(ctx context.Context, album track.Album, tracks ...track.Track) error {
	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		if err := putAlbum(ctx, tx, album); err != nil {
			return err
		}
		for i, t := range tracks {
			if err := putTrack(ctx, tx, t, album.ID, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutTrack inserts or replaces a single track. Its album, if any, is stored too.
func (c *Catalog) PutTrack(ctx context.Context, t track.Track) error {
	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		albumID := ""
		if t.Album != nil {
			if err := putAlbum(ctx, tx, *t.Album); err != nil {
				return err
			}
			albumID = t.Album.ID
		}
		return putTrack(ctx, tx, t, albumID, 0)
	})
}

// PutPlaylist inserts or replaces a playlist with the given track IDs.
// The tracks do not have to exist.
func (c *Catalog) PutPlaylist(ctx context.Context, p track.Playlist, trackIDs ...string) error {
	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO playlists (id, name, image_url) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, image_url = excluded.image_url
		`, p.ID, p.Name, p.ImageURL); err != nil {
			return errors.Wrapf(err, "failed to store playlist %s", p.ID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = ?`, p.ID); err != nil {
			return errors.Wrapf(err, "failed to clear playlist %s", p.ID)
		}
		for i, id := range trackIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO playlist_tracks (playlist_id, position, track_id) VALUES (?, ?, ?)
			`, p.ID, i, id); err != nil {
				return errors.Wrapf(err, "failed to add track %s to playlist %s", id, p.ID)
			}
		}
		return nil
	})
}

// DeleteTrack removes a track. Playlists referencing it keep an unplayable entry.
func (c *Catalog) DeleteTrack(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
		return errors.Wrapf(err, "failed to delete track %s", id)
	}
	return nil
}

func putAlbum(ctx context.Context, tx *sql.Tx, a track.Album) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO albums (id, name, image_url, release_date) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			image_url = excluded.image_url,
			release_date = excluded.release_date
	`, a.ID, a.Name, a.ImageURL, a.ReleaseDate)
	if err != nil {
		return errors.Wrapf(err, "failed to store album %s", a.ID)
	}
	return nil
}

func putTrack(ctx context.Context, tx *sql.Tx, t track.Track, albumID string, position int) error {
	var album, path sql.NullString
	if albumID != "" {
		album = sql.NullString{String: albumID, Valid: true}
	}
	var durationMs int64
	if t.Source != nil {
		path = sql.NullString{String: t.Source.Locator, Valid: t.Source.Locator != ""}
		durationMs = t.Source.Duration.Milliseconds()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO tracks (id, name, album_id, album_position, path, duration_ms) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			album_id = excluded.album_id,
			album_position = excluded.album_position,
			path = excluded.path,
			duration_ms = excluded.duration_ms
	`, t.ID, t.Name, album, position, path, durationMs)
	if err != nil {
		return errors.Wrapf(err, "failed to store track %s", t.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM track_artists WHERE track_id = ?`, t.ID); err != nil {
		return errors.Wrapf(err, "failed to clear artists of track %s", t.ID)
	}
	for i, a := range t.Artists {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO artists (id, name, image_url) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, image_url = excluded.image_url
		`, a.ID, a.Name, a.ImageURL); err != nil {
			return errors.Wrapf(err, "failed to store artist %s", a.ID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO track_artists (track_id, position, artist_id) VALUES (?, ?, ?)
		`, t.ID, i, a.ID); err != nil {
			return errors.Wrapf(err, "failed to link artist %s", a.ID)
		}
	}
	return nil
}
