package playback

import (
	"sync"
	"time"
)

// EventType represents a backend event type.
type EventType int

const (
	EventStarted         EventType = iota // Backend started or resumed output
	EventPaused                           // Backend paused output
	EventStopped                          // Backend stopped and released the source
	EventPositionChanged                  // Playback position changed
	EventFinished                         // Source played to its end
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventStopped:
		return "stopped"
	case EventPositionChanged:
		return "position_changed"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event represents a backend event.
type Event struct {
	Type     EventType
	Position time.Duration // Set for EventPositionChanged
}

// Listener receives backend events. Implementations must not block.
type Listener interface {
	OnStarted()
	OnPaused()
	OnStopped()
	OnPositionChanged(position time.Duration)
	OnFinished()
}

// Dispatch delivers e to the matching Listener method.
func Dispatch(l Listener, e Event) {
	switch e.Type {
	case EventStarted:
		l.OnStarted()
	case EventPaused:
		l.OnPaused()
	case EventStopped:
		l.OnStopped()
	case EventPositionChanged:
		l.OnPositionChanged(e.Position)
	case EventFinished:
		l.OnFinished()
	}
}

// Emitter holds the single listener registration of a backend.
// Backends embed it to implement SetListener.
type Emitter struct {
	mu       sync.RWMutex
	listener Listener
}

// SetListener registers l, replacing any previous listener.
func (e *Emitter) SetListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
}

// Emit delivers ev to the registered listener, if any.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	l := e.listener
	e.mu.RUnlock()

	if l != nil {
		Dispatch(l, ev)
	}
}
