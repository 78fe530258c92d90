// Package mpris exposes the playback controller on the MPRIS D-Bus interface.
package mpris

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/osa030/tapedeck/internal/app/playback"
)

const commandTimeout = 5 * time.Second

// Player is the part of the playback controller driven by media keys.
type Player interface {
	State() playback.State
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error
	ToggleRepeat(ctx context.Context) (playback.RepeatMode, error)
}

type status int

const (
	statusStopped status = iota
	statusPlaying
	statusPaused
)

type trackMeta struct {
	ID      string // D-Bus object path
	Title   string
	Artists []string
	Album   string
	ArtURL  string
	Length  time.Duration
}

// control maps MPRIS semantics onto a Player.
type control struct {
	player Player
}

func (c control) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

func (c control) available() (playback.Available, bool) {
	a, ok := c.player.State().(playback.Available)
	return a, ok
}

func (c control) status() status {
	switch st := c.player.State().(type) {
	case playback.Available:
		if st.IsPlaying {
			return statusPlaying
		}
		return statusPaused
	case playback.Unavailable, playback.Loading:
		return statusStopped
	default:
		return statusStopped
	}
}

func (c control) play() error {
	ctx, cancel := c.ctx()
	defer cancel()
	return c.player.Play(ctx)
}

func (c control) pause() error {
	if _, ok := c.available(); !ok {
		return nil
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return c.player.Pause(ctx)
}

func (c control) playPause() error {
	a, ok := c.available()
	if !ok {
		return nil
	}
	ctx, cancel := c.ctx()
	defer cancel()
	if a.IsPlaying {
		return c.player.Pause(ctx)
	}
	return c.player.Play(ctx)
}

func (c control) next() error {
	ctx, cancel := c.ctx()
	defer cancel()
	return c.player.Next(ctx)
}

func (c control) previous() error {
	ctx, cancel := c.ctx()
	defer cancel()
	return c.player.Previous(ctx)
}

// seekBy seeks relative to the current position. Seeking past the end
// of the track skips to the next one.
func (c control) seekBy(offset time.Duration) error {
	a, ok := c.available()
	if !ok {
		return nil
	}
	ctx, cancel := c.ctx()
	defer cancel()

	target := max(a.Elapsed+offset, 0)
	if a.Duration > 0 && target > a.Duration {
		return c.player.Next(ctx)
	}
	return c.player.Seek(ctx, target)
}

// setPosition seeks to an absolute position if trackID still names the current track.
func (c control) setPosition(trackID string, position time.Duration) error {
	a, ok := c.available()
	if !ok || trackID != objectPath(a) {
		return nil
	}
	if position < 0 || (a.Duration > 0 && position > a.Duration) {
		return nil
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return c.player.Seek(ctx, position)
}

func (c control) repeat() playback.RepeatMode {
	a, ok := c.available()
	if !ok {
		return playback.RepeatOff
	}
	return a.Repeat
}

// setRepeat toggles repeat until the requested mode is reached.
func (c control) setRepeat(want playback.RepeatMode) error {
	a, ok := c.available()
	if !ok {
		return nil
	}
	ctx, cancel := c.ctx()
	defer cancel()

	mode := a.Repeat
	for range 3 {
		if mode == want {
			return nil
		}
		var err error
		if mode, err = c.player.ToggleRepeat(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c control) position() time.Duration {
	a, ok := c.available()
	if !ok {
		return 0
	}
	return a.Elapsed
}

func (c control) canPlay() bool {
	_, ok := c.available()
	return ok
}

func (c control) metadata() (trackMeta, bool) {
	a, ok := c.available()
	if !ok {
		return trackMeta{}, false
	}
	t := a.Current()
	m := trackMeta{
		ID:      objectPath(a),
		Title:   t.Name,
		Artists: t.ArtistNames(),
		Length:  t.Duration(),
	}
	if t.Album != nil {
		m.Album = t.Album.Name
		m.ArtURL = t.Album.ImageURL
	}
	return m, true
}

// objectPath returns a D-Bus object path identifying the current queue position.
func objectPath(a playback.Available) string {
	h := fnv.New64a()
	h.Write([]byte(a.Current().ID))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%d_%d_%x", a.Cursor.Entry, a.Cursor.Sub, h.Sum64())
}
