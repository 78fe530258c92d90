package spotify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/tapedeck/internal/app/playback"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []playback.EventType
	pos    time.Duration
}

func (r *eventRecorder) add(e playback.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) OnStarted()  { r.add(playback.EventStarted) }
func (r *eventRecorder) OnPaused()   { r.add(playback.EventPaused) }
func (r *eventRecorder) OnStopped()  { r.add(playback.EventStopped) }
func (r *eventRecorder) OnFinished() { r.add(playback.EventFinished) }

func (r *eventRecorder) OnPositionChanged(p time.Duration) {
	r.mu.Lock()
	r.pos = p
	r.mu.Unlock()
	r.add(playback.EventPositionChanged)
}

func (r *eventRecorder) list() []playback.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]playback.EventType(nil), r.events...)
}

func newTestBackend(t *testing.T) (*Backend, *fakeAPI, *eventRecorder) {
	t.Helper()
	api := newFakeAPI()
	client := newClient(api, "JP")
	client.retryDelay = time.Millisecond
	// A long poll interval keeps the poll loop out of the way; tests call observe directly.
	b := NewBackend(client, BackendConfig{PollIntervalMs: 10000, FinishSlackMs: 1500})
	rec := &eventRecorder{}
	b.SetListener(rec)
	t.Cleanup(func() { _ = b.Close() })
	return b, api, rec
}

func TestDecodeBackendConfig(t *testing.T) {
	cfg, err := DecodeBackendConfig(map[string]any{"device_id": "dev1"})
	require.NoError(t, err)
	assert.Equal(t, "dev1", cfg.DeviceID)
	assert.Equal(t, 1000, cfg.PollIntervalMs)
	assert.Equal(t, 1500, cfg.FinishSlackMs)

	_, err = DecodeBackendConfig(map[string]any{"poll_interval_ms": 10})
	assert.Error(t, err)

	cfg, err = DecodeBackendConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.DeviceID)
}

func TestBackend_PlayPauseStop(t *testing.T) {
	b, api, rec := newTestBackend(t)
	ctx := context.Background()

	assert.Error(t, b.SetSource(ctx, "/music/file.mp3"))
	assert.Error(t, b.Play(ctx), "nothing loaded")

	require.NoError(t, b.SetSource(ctx, "spotify:track:t1"))
	assert.Empty(t, api.playerCalls(), "loading does not start the device")

	require.NoError(t, b.Seek(ctx, 30*time.Second))
	pos, err := b.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, pos)

	require.NoError(t, b.Play(ctx))
	require.NoError(t, b.Pause(ctx))
	require.NoError(t, b.Play(ctx))
	require.NoError(t, b.Stop(ctx))
	require.NoError(t, b.Pause(ctx))

	assert.Equal(t, []string{
		"PlayOpt:spotify:track:t1",
		"SeekOpt:30000",
		"PauseOpt",
		"PlayOpt",
		"PauseOpt",
	}, api.playerCalls())
	assert.Equal(t, []playback.EventType{
		playback.EventStarted,
		playback.EventPaused,
		playback.EventStarted,
		playback.EventStopped,
		playback.EventPaused,
	}, rec.list())
}

func TestBackend_ObserveFinish(t *testing.T) {
	b, api, rec := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.SetSource(ctx, "spotify:track:t1"))
	require.NoError(t, b.Play(ctx))

	item := fullTrack("t1", "Song")
	b.observe(&spotify.PlayerState{CurrentlyPlaying: spotify.CurrentlyPlaying{Playing: true, Progress: 60000, Item: item}})
	assert.Equal(t, playback.EventPositionChanged, rec.list()[len(rec.list())-1])
	rec.mu.Lock()
	assert.Equal(t, time.Minute, rec.pos)
	rec.mu.Unlock()

	// Still playing the last second: not finished yet.
	b.observe(&spotify.PlayerState{CurrentlyPlaying: spotify.CurrentlyPlaying{Playing: true, Progress: 179000, Item: item}})
	assert.Equal(t, playback.EventPositionChanged, rec.list()[len(rec.list())-1])

	// The device rewound and stopped after the end.
	b.observe(&spotify.PlayerState{CurrentlyPlaying: spotify.CurrentlyPlaying{Playing: false, Progress: 0, Item: item}})
	assert.Equal(t, playback.EventFinished, rec.list()[len(rec.list())-1])

	n := len(rec.list())
	b.observe(&spotify.PlayerState{CurrentlyPlaying: spotify.CurrentlyPlaying{Playing: false, Progress: 0, Item: item}})
	assert.Len(t, rec.list(), n, "finish is reported once")

	api.mu.Lock()
	api.state = &spotify.PlayerState{CurrentlyPlaying: spotify.CurrentlyPlaying{Progress: 5000, Item: item}}
	api.mu.Unlock()
	require.NoError(t, b.SetSource(ctx, "spotify:track:t1"))
	require.NoError(t, b.Play(ctx))
	pos, err := b.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, pos)
}

func TestObservation_Finished(t *testing.T) {
	const slack = 1500 * time.Millisecond
	tests := []struct {
		name string
		obs  observation
		want bool
	}{
		{
			name: "unknown duration",
			obs:  observation{uri: "a", itemURI: "a", playing: true, progress: time.Minute},
			want: false,
		},
		{
			name: "playing in the middle",
			obs:  observation{uri: "a", itemURI: "a", duration: 3 * time.Minute, playing: true, progress: time.Minute},
			want: false,
		},
		{
			name: "playing inside the slack",
			obs:  observation{uri: "a", itemURI: "a", duration: 3 * time.Minute, playing: true, progress: 3*time.Minute - 1400*time.Millisecond},
			want: false,
		},
		{
			name: "playing reached the end",
			obs:  observation{uri: "a", itemURI: "a", duration: 3 * time.Minute, playing: true, progress: 3 * time.Minute},
			want: true,
		},
		{
			name: "stopped near the end",
			obs:  observation{uri: "a", itemURI: "a", duration: 3 * time.Minute, lastPos: 3*time.Minute - 2*time.Second, progress: 3*time.Minute - time.Second},
			want: true,
		},
		{
			name: "paused in the middle",
			obs:  observation{uri: "a", itemURI: "a", duration: 3 * time.Minute, lastPos: time.Minute, progress: time.Minute},
			want: false,
		},
		{
			name: "rewound after being near the end",
			obs:  observation{uri: "a", itemURI: "a", duration: 3 * time.Minute, lastPos: 3*time.Minute - time.Second},
			want: true,
		},
		{
			name: "paused at the start",
			obs:  observation{uri: "a", itemURI: "a", duration: 3 * time.Minute},
			want: false,
		},
		{
			name: "device moved on after the end",
			obs:  observation{uri: "a", itemURI: "b", duration: 3 * time.Minute, lastPos: 3*time.Minute - time.Second, playing: true},
			want: true,
		},
		{
			name: "device switched by someone else",
			obs:  observation{uri: "a", itemURI: "b", duration: 3 * time.Minute, lastPos: time.Minute, playing: true},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.obs.finished(slack))
		})
	}
}
