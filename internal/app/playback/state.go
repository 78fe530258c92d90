// Package playback provides the playback queue controller.
package playback

import (
	"time"

	"github.com/osa030/tapedeck/internal/domain/queue"
	"github.com/osa030/tapedeck/internal/domain/track"
)

// RepeatMode represents the repeat mode.
type RepeatMode int

const (
	RepeatOff   RepeatMode = iota // Queue wraps on explicit navigation, auto-advance stops at the end
	RepeatList                    // Queue loops
	RepeatTrack                   // Current track replays when it finishes
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatList:
		return "list"
	case RepeatTrack:
		return "track"
	default:
		return "unknown"
	}
}

// Next returns the mode that follows m in the toggle cycle Off -> List -> Track -> Off.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatList
	case RepeatList:
		return RepeatTrack
	default:
		return RepeatOff
	}
}

// Status identifies the variant of a State.
type Status int

const (
	StatusUnavailable Status = iota // No queue has ever been loaded
	StatusLoading                   // A queue swap is in flight
	StatusAvailable                 // A queue is loaded
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusLoading:
		return "loading"
	case StatusAvailable:
		return "available"
	default:
		return "unknown"
	}
}

// State is the published controller snapshot.
//
// The set of implementations is closed: Unavailable, Loading and Available.
type State interface {
	Status() Status
	state()
}

// Unavailable is the state before any queue has been loaded.
type Unavailable struct{}

// Loading is published while references are being resolved for a new queue.
// Transport controls should be suppressed.
type Loading struct{}

// Available is the state once a queue is loaded.
type Available struct {
	Queue     queue.Queue
	Cursor    queue.Cursor
	IsPlaying bool
	Repeat    RepeatMode
	Elapsed   time.Duration // Position inside the current track
	Duration  time.Duration // Duration of the current track
	Enabled   bool          // False while a command is mutating state
}

func (Unavailable) Status() Status { return StatusUnavailable }
func (Unavailable) state() {}

func (Loading) Status() Status { return StatusLoading }
func (Loading) state() {}

func (Available) Status() Status { return StatusAvailable }
func (Available) state() {}

// Current returns the track under the cursor.
func (a Available) Current() track.Track {
	t, _ := a.Queue.Current(a.Cursor)
	return t
}
