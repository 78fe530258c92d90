package playback

import (
	"context"
	"time"
)

// Backend is the media backend driven by the controller.
//
// Implementations must be safe for concurrent use: the controller issues
// commands from its worker and may poll Position from another goroutine.
// Events are delivered to the listener registered with SetListener.
type Backend interface {
	// SetSource loads a source without starting output.
	SetSource(ctx context.Context, locator string) error
	// Play starts or resumes output of the loaded source.
	Play(ctx context.Context) error
	// Pause pauses output, keeping the source loaded.
	Pause(ctx context.Context) error
	// Stop stops output and releases the source.
	Stop(ctx context.Context) error
	// Seek moves to an absolute position in the loaded source.
	Seek(ctx context.Context, position time.Duration) error
	// Position returns the current position in the loaded source.
	Position(ctx context.Context) (time.Duration, error)
	// SetListener registers the event listener.
	SetListener(l Listener)
	// Close releases backend resources.
	Close() error
}
