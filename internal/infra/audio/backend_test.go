package audio

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tapedeck/internal/app/playback"
)

const testRate = 8000

// fakeOutput mixes streamers on demand instead of feeding a device.
type fakeOutput struct {
	mu        sync.Mutex
	streamers []beep.Streamer
	closed    bool
}

func (o *fakeOutput) Init(beep.SampleRate, int) error { return nil }

func (o *fakeOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamers = append(o.streamers, s)
}

func (o *fakeOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamers = nil
}

func (o *fakeOutput) Lock()   { o.mu.Lock() }
func (o *fakeOutput) Unlock() { o.mu.Unlock() }

func (o *fakeOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

// drain pulls n samples through every queued streamer.
func (o *fakeOutput) drain(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	buf := make([][2]float64, 512)
	var alive []beep.Streamer
	for _, s := range o.streamers {
		remaining := n
		ok := true
		for remaining > 0 {
			var got int
			got, ok = s.Stream(buf[:min(len(buf), remaining)])
			if !ok {
				break
			}
			remaining -= got
		}
		if ok {
			alive = append(alive, s)
		}
	}
	o.streamers = alive
}

type recorder struct {
	mu     sync.Mutex
	events []playback.EventType
}

func (r *recorder) add(e playback.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) OnStarted()                        { r.add(playback.EventStarted) }
func (r *recorder) OnPaused()                         { r.add(playback.EventPaused) }
func (r *recorder) OnStopped()                        { r.add(playback.EventStopped) }
func (r *recorder) OnPositionChanged(_ time.Duration) { r.add(playback.EventPositionChanged) }
func (r *recorder) OnFinished()                       { r.add(playback.EventFinished) }

func (r *recorder) has(e playback.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.events {
		if got == e {
			return true
		}
	}
	return false
}

func (r *recorder) without(skip playback.EventType) []playback.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []playback.EventType
	for _, e := range r.events {
		if e != skip {
			out = append(out, e)
		}
	}
	return out
}

// flat is a constant signal of a fixed number of samples.
type flat struct {
	left int
}

func (f *flat) Stream(samples [][2]float64) (int, bool) {
	if f.left == 0 {
		return 0, false
	}
	n := min(len(samples), f.left)
	for i := range samples[:n] {
		samples[i] = [2]float64{0.1, 0.1}
	}
	f.left -= n
	return n, true
}

func (f *flat) Err() error { return nil }

// writeWAV writes a mono wav file of the given length at testRate.
func writeWAV(t *testing.T, name string, length time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: testRate, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, &flat{left: format.SampleRate.N(length)}, format))
	return path
}

func newTestBackend(t *testing.T, cfg Config) (*Backend, *fakeOutput, *recorder) {
	t.Helper()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = testRate
	}
	if cfg.BufferMs == 0 {
		cfg.BufferMs = 100
	}
	if cfg.PositionIntervalMs == 0 {
		cfg.PositionIntervalMs = 10000
	}
	out := &fakeOutput{}
	b, err := newBackend(cfg, out)
	require.NoError(t, err)
	rec := &recorder{}
	b.SetListener(rec)
	t.Cleanup(func() { _ = b.Close() })
	return b, out, rec
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, Config{BufferMs: 100, PositionIntervalMs: 500, SampleRate: 44100}, cfg)

	cfg, err = DecodeConfig(map[string]any{"buffer_ms": 200, "sample_rate": 48000})
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.BufferMs)
	assert.Equal(t, 48000, cfg.SampleRate)

	_, err = DecodeConfig(map[string]any{"position_interval_ms": 1})
	assert.Error(t, err)
}

func TestBackend_SetSourceErrors(t *testing.T) {
	b, _, _ := newTestBackend(t, Config{})
	ctx := context.Background()

	err := b.SetSource(ctx, "/music/cover.jpg")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	err = b.SetSource(ctx, filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)

	assert.ErrorIs(t, b.Play(ctx), ErrNoSource)
	assert.ErrorIs(t, b.Seek(ctx, time.Second), ErrNoSource)
	assert.NoError(t, b.Pause(ctx))
}

func TestBackend_PlayToEnd(t *testing.T) {
	b, out, rec := newTestBackend(t, Config{})
	ctx := context.Background()
	path := writeWAV(t, "one.wav", time.Second)

	require.NoError(t, b.SetSource(ctx, path))
	out.drain(testRate / 2)
	pos, err := b.Position(ctx)
	require.NoError(t, err)
	assert.Zero(t, pos, "a loaded source stays paused")

	require.NoError(t, b.Play(ctx))
	out.drain(testRate / 2)
	pos, err = b.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, pos)

	require.NoError(t, b.Pause(ctx))
	out.drain(testRate / 4)
	pos, err = b.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, pos)

	require.NoError(t, b.Play(ctx))
	out.drain(testRate)

	require.Eventually(t, func() bool { return rec.has(playback.EventFinished) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []playback.EventType{
		playback.EventStarted,
		playback.EventPaused,
		playback.EventStarted,
		playback.EventFinished,
	}, rec.without(playback.EventPositionChanged))
}

func TestBackend_Seek(t *testing.T) {
	b, _, _ := newTestBackend(t, Config{})
	ctx := context.Background()
	require.NoError(t, b.SetSource(ctx, writeWAV(t, "one.wav", time.Second)))

	require.NoError(t, b.Seek(ctx, 250*time.Millisecond))
	pos, err := b.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, pos)

	require.NoError(t, b.Seek(ctx, time.Hour))
	pos, err = b.Position(ctx)
	require.NoError(t, err)
	assert.Less(t, pos, time.Second)
}

func TestBackend_StopDropsSource(t *testing.T) {
	b, out, rec := newTestBackend(t, Config{})
	ctx := context.Background()
	require.NoError(t, b.SetSource(ctx, writeWAV(t, "one.wav", time.Second)))
	require.NoError(t, b.Play(ctx))

	require.NoError(t, b.Stop(ctx))
	out.drain(2 * testRate)

	pos, err := b.Position(ctx)
	require.NoError(t, err)
	assert.Zero(t, pos)
	assert.ErrorIs(t, b.Play(ctx), ErrNoSource)
	assert.Equal(t, []playback.EventType{playback.EventStarted, playback.EventStopped}, rec.without(playback.EventPositionChanged))

	require.NoError(t, b.Stop(ctx))
	assert.Len(t, rec.without(playback.EventPositionChanged), 2, "stopping twice reports once")
}

func TestBackend_StaleEndIgnored(t *testing.T) {
	b, _, rec := newTestBackend(t, Config{})
	ctx := context.Background()
	require.NoError(t, b.SetSource(ctx, writeWAV(t, "one.wav", time.Second)))
	require.NoError(t, b.SetSource(ctx, writeWAV(t, "two.wav", time.Second)))

	b.ended(1)
	assert.False(t, rec.has(playback.EventFinished))

	b.ended(2)
	assert.True(t, rec.has(playback.EventFinished))
}

func TestBackend_Resample(t *testing.T) {
	b, out, rec := newTestBackend(t, Config{SampleRate: 2 * testRate})
	ctx := context.Background()
	require.NoError(t, b.SetSource(ctx, writeWAV(t, "one.wav", time.Second)))
	require.NoError(t, b.Play(ctx))

	out.drain(testRate)
	pos, err := b.Position(ctx)
	require.NoError(t, err)
	assert.InDelta(t, float64(500*time.Millisecond), float64(pos), float64(50*time.Millisecond))

	out.drain(2 * testRate)
	require.Eventually(t, func() bool { return rec.has(playback.EventFinished) }, time.Second, 5*time.Millisecond)
}

func TestBackend_ReportsPosition(t *testing.T) {
	b, _, rec := newTestBackend(t, Config{PositionIntervalMs: 50})
	ctx := context.Background()
	require.NoError(t, b.SetSource(ctx, writeWAV(t, "one.wav", time.Second)))

	time.Sleep(120 * time.Millisecond)
	assert.False(t, rec.has(playback.EventPositionChanged), "no reports while paused")

	require.NoError(t, b.Play(ctx))
	require.Eventually(t, func() bool { return rec.has(playback.EventPositionChanged) }, time.Second, 10*time.Millisecond)
}

func TestBackend_Close(t *testing.T) {
	b, out, _ := newTestBackend(t, Config{})
	require.NoError(t, b.SetSource(context.Background(), writeWAV(t, "one.wav", time.Second)))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.True(t, out.closed)
	assert.Empty(t, out.streamers)
}

func TestProbe(t *testing.T) {
	d, err := Probe(writeWAV(t, "one.wav", 1500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	_, err = Probe("/music/notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
