//go:build linux

package mpris

import (
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/app/playback"
)

// Adapter serves the MPRIS interfaces on the session bus.
type Adapter struct {
	server *server.Server
}

// New starts serving player on the session bus as org.mpris.MediaPlayer2.<name>.
func New(player Player, name string) (*Adapter, error) {
	c := control{player: player}
	a := &Adapter{
		server: server.NewServer(name, &rootAdapter{identity: name}, &playerAdapter{c: c}),
	}

	go func() {
		if err := a.server.Listen(); err != nil {
			zlog.Warn().Msgf("mpris: listen failed: name=%s error=%v", name, err)
		}
	}()

	zlog.Debug().Msgf("mpris: serving: name=%s", name)
	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct {
	identity string
}

func (r *rootAdapter) Raise() error                { return nil }
func (r *rootAdapter) Quit() error                 { return nil }
func (r *rootAdapter) CanQuit() (bool, error)      { return false, nil }
func (r *rootAdapter) CanRaise() (bool, error)     { return false, nil }
func (r *rootAdapter) HasTrackList() (bool, error) { return false, nil }
func (r *rootAdapter) Identity() (string, error)   { return r.identity, nil }

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file", "spotify"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter and LoopStatus.
type playerAdapter struct {
	c control
}

func (p *playerAdapter) Next() error      { return p.c.next() }
func (p *playerAdapter) Previous() error  { return p.c.previous() }
func (p *playerAdapter) Pause() error     { return p.c.pause() }
func (p *playerAdapter) PlayPause() error { return p.c.playPause() }
func (p *playerAdapter) Play() error      { return p.c.play() }

// Stop pauses; the queue has no stopped state.
func (p *playerAdapter) Stop() error { return p.c.pause() }

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	return p.c.seekBy(time.Duration(offset) * time.Microsecond)
}

func (p *playerAdapter) SetPosition(trackID string, position types.Microseconds) error {
	return p.c.setPosition(trackID, time.Duration(position)*time.Microsecond)
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.c.status() {
	case statusPlaying:
		return types.PlaybackStatusPlaying, nil
	case statusPaused:
		return types.PlaybackStatusPaused, nil
	default:
		return types.PlaybackStatusStopped, nil
	}
}

func (p *playerAdapter) Rate() (float64, error)  { return 1.0, nil }
func (p *playerAdapter) SetRate(_ float64) error { return nil }

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	m, ok := p.c.metadata()
	if !ok {
		return types.Metadata{}, nil
	}
	return types.Metadata{
		TrackId: dbus.ObjectPath(m.ID),
		Length:  types.Microseconds(m.Length.Microseconds()),
		Title:   m.Title,
		Artist:  m.Artists,
		Album:   m.Album,
		ArtUrl:  m.ArtURL,
	}, nil
}

func (p *playerAdapter) Volume() (float64, error)      { return 1.0, nil }
func (p *playerAdapter) SetVolume(_ float64) error     { return nil }
func (p *playerAdapter) Position() (int64, error)      { return p.c.position().Microseconds(), nil }
func (p *playerAdapter) MinimumRate() (float64, error) { return 1.0, nil }
func (p *playerAdapter) MaximumRate() (float64, error) { return 1.0, nil }
func (p *playerAdapter) CanGoNext() (bool, error)      { return p.c.canPlay(), nil }
func (p *playerAdapter) CanGoPrevious() (bool, error)  { return p.c.canPlay(), nil }
func (p *playerAdapter) CanPlay() (bool, error)        { return p.c.canPlay(), nil }
func (p *playerAdapter) CanPause() (bool, error)       { return p.c.canPlay(), nil }
func (p *playerAdapter) CanSeek() (bool, error)        { return p.c.canPlay(), nil }
func (p *playerAdapter) CanControl() (bool, error)     { return true, nil }

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	switch p.c.repeat() {
	case playback.RepeatTrack:
		return types.LoopStatusTrack, nil
	case playback.RepeatList:
		return types.LoopStatusPlaylist, nil
	default:
		return types.LoopStatusNone, nil
	}
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	switch status {
	case types.LoopStatusTrack:
		return p.c.setRepeat(playback.RepeatTrack)
	case types.LoopStatusPlaylist:
		return p.c.setRepeat(playback.RepeatList)
	default:
		return p.c.setRepeat(playback.RepeatOff)
	}
}
