// Package audio provides a local file playback backend built on beep.
package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/app/playback"
)

// Errors
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNoSource          = errors.New("no source loaded")
)

const resampleQuality = 4

// Config configures the local backend.
type Config struct {
	BufferMs           int `mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	PositionIntervalMs int `mapstructure:"position_interval_ms" default:"500" validate:"gte=50,lte=10000"`
	SampleRate         int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
}

// DecodeConfig decodes backend settings from the config file.
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

// source is a decoded file handed to the output.
type source struct {
	locator string
	file    *os.File
	stream  beep.StreamSeekCloser
	format  beep.Format
	ctrl    *beep.Ctrl
}

func (s *source) close() {
	if err := s.stream.Close(); err != nil {
		zlog.Debug().Msgf("audio: close stream: locator=%s error=%v", s.locator, err)
	}
	_ = s.file.Close()
}

// Backend plays local mp3, flac and wav files through the default audio device.
type Backend struct {
	playback.Emitter

	cfg Config
	out output

	mu      sync.Mutex
	src     *source
	playing bool
	gen     uint64 // incremented on every source change

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Verify Backend implements playback.Backend at compile time.
var _ playback.Backend = (*Backend)(nil)

// NewBackend initializes the speaker and starts the position reporter.
func NewBackend(cfg Config) (*Backend, error) {
	return newBackend(cfg, &speakerOutput{})
}

func newBackend(cfg Config, out output) (*Backend, error) {
	sr := beep.SampleRate(cfg.SampleRate)
	if err := out.Init(sr, sr.N(time.Duration(cfg.BufferMs)*time.Millisecond)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize audio output")
	}

	b := &Backend{
		cfg:  cfg,
		out:  out,
		stop: make(chan struct{}),
	}
	b.wg.Add(1)
	go b.reportPosition(time.Duration(cfg.PositionIntervalMs) * time.Millisecond)

	zlog.Debug().Msgf("audio: initialized: sample_rate=%d buffer_ms=%d", cfg.SampleRate, cfg.BufferMs)
	return b, nil
}

// SetSource implements playback.Backend. The file is decoded and queued paused.
func (b *Backend) SetSource(_ context.Context, locator string) error {
	src, err := openSource(locator)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.releaseLocked()
	b.gen++
	gen := b.gen
	b.src = src
	b.playing = false

	var s beep.Streamer = src.ctrl
	if outRate := beep.SampleRate(b.cfg.SampleRate); src.format.SampleRate != outRate {
		s = beep.Resample(resampleQuality, src.format.SampleRate, outRate, s)
	}
	b.out.Play(beep.Seq(s, beep.Callback(func() {
		// Runs on the output goroutine with the output locked.
		go b.ended(gen)
	})))
	b.mu.Unlock()

	zlog.Debug().Msgf("audio: source loaded: locator=%s sample_rate=%d", locator, src.format.SampleRate)
	return nil
}

// Play implements playback.Backend.
func (b *Backend) Play(_ context.Context) error {
	b.mu.Lock()
	if b.src == nil {
		b.mu.Unlock()
		return ErrNoSource
	}
	b.setPausedLocked(false)
	b.mu.Unlock()

	b.Emit(playback.Event{Type: playback.EventStarted})
	return nil
}

// Pause implements playback.Backend.
func (b *Backend) Pause(_ context.Context) error {
	b.mu.Lock()
	if b.src == nil || !b.playing {
		b.mu.Unlock()
		return nil
	}
	b.setPausedLocked(true)
	b.mu.Unlock()

	b.Emit(playback.Event{Type: playback.EventPaused})
	return nil
}

// Stop implements playback.Backend.
func (b *Backend) Stop(_ context.Context) error {
	b.mu.Lock()
	hadSource := b.src != nil
	b.releaseLocked()
	b.gen++
	b.mu.Unlock()

	if hadSource {
		b.Emit(playback.Event{Type: playback.EventStopped})
	}
	return nil
}

// Seek implements playback.Backend. Positions past the end are clamped to the last sample.
func (b *Backend) Seek(_ context.Context, position time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.src == nil {
		return ErrNoSource
	}

	b.out.Lock()
	defer b.out.Unlock()
	n := b.src.format.SampleRate.N(position)
	n = max(0, min(n, b.src.stream.Len()-1))
	if err := b.src.stream.Seek(n); err != nil {
		return errors.Wrapf(err, "failed to seek %s", b.src.locator)
	}
	return nil
}

// Position implements playback.Backend.
func (b *Backend) Position(_ context.Context) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.src == nil {
		return 0, nil
	}
	return b.positionLocked(), nil
}

// Close implements playback.Backend.
func (b *Backend) Close() error {
	b.once.Do(func() {
		close(b.stop)
		b.wg.Wait()

		b.mu.Lock()
		b.releaseLocked()
		b.gen++
		b.mu.Unlock()

		b.out.Close()
	})
	return nil
}

func (b *Backend) positionLocked() time.Duration {
	b.out.Lock()
	defer b.out.Unlock()
	return b.src.format.SampleRate.D(b.src.stream.Position())
}

func (b *Backend) setPausedLocked(paused bool) {
	b.out.Lock()
	b.src.ctrl.Paused = paused
	b.out.Unlock()
	b.playing = !paused
}

func (b *Backend) releaseLocked() {
	if b.src == nil {
		return
	}
	b.out.Clear()
	b.src.close()
	b.src = nil
	b.playing = false
}

// ended handles the end of the stream for the source loaded as gen.
func (b *Backend) ended(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.playing = false
	b.mu.Unlock()

	zlog.Debug().Msg("audio: source finished")
	b.Emit(playback.Event{Type: playback.EventFinished})
}

func (b *Backend) reportPosition(interval time.Duration) {
	defer b.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			if b.src == nil || !b.playing {
				b.mu.Unlock()
				continue
			}
			pos := b.positionLocked()
			b.mu.Unlock()

			b.Emit(playback.Event{Type: playback.EventPositionChanged, Position: pos})
		}
	}
}

func openSource(locator string) (*source, error) {
	ext := strings.ToLower(filepath.Ext(locator))
	if ext != ".mp3" && ext != ".flac" && ext != ".wav" {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", locator)
	}

	f, err := os.Open(locator)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", locator)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".flac":
		stream, format, err = flac.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to decode %s", locator)
	}

	return &source{
		locator: locator,
		file:    f,
		stream:  stream,
		format:  format,
		ctrl:    &beep.Ctrl{Streamer: stream, Paused: true},
	}, nil
}

// Probe returns the length of a local audio file.
func Probe(locator string) (time.Duration, error) {
	src, err := openSource(locator)
	if err != nil {
		return 0, err
	}
	defer src.close()
	return src.format.SampleRate.D(src.stream.Len()), nil
}
