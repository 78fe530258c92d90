package spotify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/tapedeck/internal/app/playback"
)

// BackendConfig configures the Spotify Connect backend.
type BackendConfig struct {
	DeviceID       string `mapstructure:"device_id"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms" default:"1000" validate:"gte=100,lte=10000"`
	FinishSlackMs  int    `mapstructure:"finish_slack_ms" default:"1500" validate:"gte=0,lte=10000"`
}

// DecodeBackendConfig decodes backend settings from the config file.
func DecodeBackendConfig(settings map[string]any) (BackendConfig, error) {
	var cfg BackendConfig
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

// Backend drives a Spotify Connect device.
//
// Spotify cannot load a track without starting it, so SetSource only records
// the URI and the first Play starts it at the pending position. Position and
// the end of the track are observed by polling the player state.
type Backend struct {
	playback.Emitter

	client *Client
	config BackendConfig

	mu         sync.Mutex
	uri        string
	duration   time.Duration
	started    bool // the current URI was sent to the device
	playing    bool
	pendingPos time.Duration
	lastPos    time.Duration
	finished   bool

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Verify Backend implements playback.Backend at compile time.
var _ playback.Backend = (*Backend)(nil)

// NewBackend creates a backend and starts polling the player state.
func NewBackend(client *Client, config BackendConfig) *Backend {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		client: client,
		config: config,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.poll(ctx)
	return b
}

func (b *Backend) playOptions() *spotify.PlayOptions {
	opt := &spotify.PlayOptions{}
	if b.config.DeviceID != "" {
		id := spotify.ID(b.config.DeviceID)
		opt.DeviceID = &id
	}
	return opt
}

// SetSource implements playback.Backend.
func (b *Backend) SetSource(_ context.Context, locator string) error {
	if !strings.HasPrefix(locator, "spotify:track:") {
		return errors.Newf("unsupported locator %q", locator)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.uri = locator
	b.duration = 0
	b.started = false
	b.pendingPos = 0
	b.lastPos = 0
	b.finished = false
	return nil
}

// Play implements playback.Backend.
func (b *Backend) Play(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uri == "" {
		return errors.New("no source loaded")
	}

	opt := b.playOptions()
	if !b.started {
		opt.URIs = []spotify.URI{spotify.URI(b.uri)}
	}
	if err := b.client.retry(ctx, func() error { return b.client.api.PlayOpt(ctx, opt) }); err != nil {
		return errors.Wrap(err, "failed to start playback")
	}
	if !b.started && b.pendingPos > 0 {
		ms := int(b.pendingPos / time.Millisecond)
		if err := b.client.retry(ctx, func() error { return b.client.api.SeekOpt(ctx, ms, b.playOptions()) }); err != nil {
			return errors.Wrap(err, "failed to seek to start position")
		}
		b.lastPos = b.pendingPos
	}

	b.started = true
	b.playing = true
	zlog.Debug().Msgf("spotify: playing: uri=%s", b.uri)
	b.Emit(playback.Event{Type: playback.EventStarted})
	return nil
}

// Pause implements playback.Backend.
func (b *Backend) Pause(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.pauseLocked(ctx); err != nil {
		return err
	}
	b.Emit(playback.Event{Type: playback.EventPaused})
	return nil
}

// Stop implements playback.Backend. Spotify has no stop, so the device is
// paused and the source forgotten.
func (b *Backend) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.pauseLocked(ctx); err != nil {
		return err
	}
	b.uri = ""
	b.started = false
	b.Emit(playback.Event{Type: playback.EventStopped})
	return nil
}

func (b *Backend) pauseLocked(ctx context.Context) error {
	if !b.started || !b.playing {
		b.playing = false
		return nil
	}
	opt := b.playOptions()
	if err := b.client.retry(ctx, func() error { return b.client.api.PauseOpt(ctx, opt) }); err != nil {
		return errors.Wrap(err, "failed to pause playback")
	}
	b.playing = false
	return nil
}

// Seek implements playback.Backend.
func (b *Backend) Seek(ctx context.Context, position time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		b.pendingPos = position
		return nil
	}
	opt := b.playOptions()
	ms := int(position / time.Millisecond)
	if err := b.client.retry(ctx, func() error { return b.client.api.SeekOpt(ctx, ms, opt) }); err != nil {
		return errors.Wrap(err, "failed to seek")
	}
	b.lastPos = position
	b.finished = false
	return nil
}

// Position implements playback.Backend.
func (b *Backend) Position(ctx context.Context) (time.Duration, error) {
	b.mu.Lock()
	started, pending := b.started, b.pendingPos
	b.mu.Unlock()
	if !started {
		return pending, nil
	}

	st, err := b.client.api.PlayerState(ctx, spotify.Market(b.client.market))
	if err != nil {
		return 0, errors.Wrap(err, "failed to get player state")
	}
	if st == nil {
		return 0, nil
	}
	return time.Duration(st.Progress) * time.Millisecond, nil
}

// Close implements playback.Backend.
func (b *Backend) Close() error {
	b.once.Do(func() {
		b.cancel()
		<-b.done
	})
	return nil
}

func (b *Backend) poll(ctx context.Context) {
	defer close(b.done)

	interval := time.Duration(b.config.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pollOnce(ctx)
		}
	}
}

func (b *Backend) pollOnce(ctx context.Context) {
	b.mu.Lock()
	active := b.started && b.playing && !b.finished
	b.mu.Unlock()
	if !active {
		return
	}

	st, err := b.client.api.PlayerState(ctx, spotify.Market(b.client.market))
	if err != nil {
		zlog.Debug().Msgf("spotify: player state poll failed: error=%v", err)
		return
	}
	b.observe(st)
}

// observe applies a polled player state and emits position and finish events.
func (b *Backend) observe(st *spotify.PlayerState) {
	b.mu.Lock()
	if !b.started || !b.playing || b.finished {
		b.mu.Unlock()
		return
	}

	obs := observation{uri: b.uri, duration: b.duration, lastPos: b.lastPos}
	if st != nil {
		obs.playing = st.Playing
		obs.progress = time.Duration(st.Progress) * time.Millisecond
		if st.Item != nil {
			obs.itemURI = trackURI(st.Item.ID)
			obs.itemDuration = time.Duration(st.Item.Duration) * time.Millisecond
		}
	}
	if obs.itemURI == b.uri && obs.itemDuration > 0 {
		b.duration = obs.itemDuration
		obs.duration = obs.itemDuration
	}

	done := obs.finished(time.Duration(b.config.FinishSlackMs) * time.Millisecond)
	if done {
		b.finished = true
		b.playing = false
	} else if obs.itemURI == b.uri {
		b.lastPos = obs.progress
	}
	pos := b.lastPos
	b.mu.Unlock()

	if done {
		zlog.Debug().Msgf("spotify: track finished: uri=%s", obs.uri)
		b.Emit(playback.Event{Type: playback.EventFinished})
		return
	}
	b.Emit(playback.Event{Type: playback.EventPositionChanged, Position: pos})
}

// observation is one polled player state relative to the loaded source.
type observation struct {
	uri          string
	duration     time.Duration
	lastPos      time.Duration
	playing      bool
	progress     time.Duration
	itemURI      string
	itemDuration time.Duration
}

// finished reports whether the loaded source has played to its end. A
// playing device must have reached the duration. Otherwise the device either
// stopped near the end, rewound to the start of the same track, or moved on
// to another item after the last known position was near the end.
func (o observation) finished(slack time.Duration) bool {
	if o.duration <= 0 {
		return false
	}
	nearEnd := o.lastPos+slack >= o.duration

	switch {
	case o.itemURI == o.uri && o.playing:
		return o.progress >= o.duration
	case o.itemURI == o.uri && o.progress+slack >= o.duration:
		return true
	case o.itemURI == o.uri && o.progress == 0:
		return nearEnd
	case o.itemURI != o.uri:
		return nearEnd
	default:
		return false
	}
}
