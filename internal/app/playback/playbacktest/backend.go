// Package playbacktest provides a scripted playback backend for tests.
package playbacktest

import (
	"context"
	"sync"
	"time"

	"github.com/osa030/tapedeck/internal/app/playback"
)

// Backend is a playback.Backend that records calls.
// Calls are recorded as "SetSource:<locator>", "Play", "Pause", "Stop" and
// "Seek:<position>". Calls made with a done context fail with its error.
type Backend struct {
	playback.Emitter

	mu       sync.Mutex
	calls    []string
	errs     map[string]error
	holds    map[string]*Hold
	position time.Duration
	closed   bool
}

// Verify Backend implements playback.Backend at compile time.
var _ playback.Backend = (*Backend)(nil)

// New creates a backend.
func New() *Backend {
	return &Backend{
		errs:  make(map[string]error),
		holds: make(map[string]*Hold),
	}
}

// Hold blocks the next call of a method until released.
type Hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered is closed once the held call has started.
func (h *Hold) Entered() <-chan struct{} {
	return h.entered
}

// Release lets the held call continue.
func (h *Hold) Release() {
	h.once.Do(func() { close(h.release) })
}

// Hold makes the next call of method block until the returned Hold is released.
func (b *Backend) Hold(method string) *Hold {
	h := &Hold{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	b.mu.Lock()
	b.holds[method] = h
	b.mu.Unlock()
	return h
}

// Fail makes every call of method return err. A nil err clears the failure.
func (b *Backend) Fail(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.errs, method)
		return
	}
	b.errs[method] = err
}

// Calls returns the recorded calls.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]string, len(b.calls))
	copy(cp, b.calls)
	return cp
}

// Reset forgets the recorded calls.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// SetPosition sets the value returned by Position.
func (b *Backend) SetPosition(p time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.position = p
}

// Finish emits a finished event.
func (b *Backend) Finish() {
	b.Emit(playback.Event{Type: playback.EventFinished})
}

// ReportPosition emits a position event.
func (b *Backend) ReportPosition(p time.Duration) {
	b.Emit(playback.Event{Type: playback.EventPositionChanged, Position: p})
}

func (b *Backend) call(ctx context.Context, method, record string) error {
	b.mu.Lock()
	b.calls = append(b.calls, record)
	h := b.holds[method]
	delete(b.holds, method)
	err := b.errs[method]
	b.mu.Unlock()

	if h != nil {
		close(h.entered)
		<-h.release
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// SetSource implements playback.Backend.
func (b *Backend) SetSource(ctx context.Context, locator string) error {
	return b.call(ctx, "SetSource", "SetSource:"+locator)
}

// Play implements playback.Backend.
func (b *Backend) Play(ctx context.Context) error {
	return b.call(ctx, "Play", "Play")
}

// Pause implements playback.Backend.
func (b *Backend) Pause(ctx context.Context) error {
	return b.call(ctx, "Pause", "Pause")
}

// Stop implements playback.Backend.
func (b *Backend) Stop(ctx context.Context) error {
	return b.call(ctx, "Stop", "Stop")
}

// Seek implements playback.Backend.
func (b *Backend) Seek(ctx context.Context, position time.Duration) error {
	return b.call(ctx, "Seek", "Seek:"+position.String())
}

// Position implements playback.Backend.
func (b *Backend) Position(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position, b.errs["Position"]
}

// Close implements playback.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
