// Package queue provides the two-level playback queue and its cursor navigation.
package queue

import (
	"fmt"
	"time"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// Cursor addresses a track inside the queue.
// Sub is only meaningful for album and playlist entries and is 0 for track entries.
type Cursor struct {
	Entry int
	Sub   int
}

// String returns the "(entry, sub)" form of the cursor.
func (c Cursor) String() string {
	return fmt.Sprintf("(%d, %d)", c.Entry, c.Sub)
}

// Queue is an ordered, immutable list of entries.
// Append returns a new Queue and never modifies the receiver, so queues can be
// shared between published snapshots.
type Queue struct {
	entries []Entry
}

// New creates a queue from entries.
func New(entries ...Entry) Queue {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return Queue{entries: cp}
}

// Len returns the number of top-level entries.
func (q Queue) Len() int {
	return len(q.entries)
}

// IsEmpty returns true if the queue has no entries.
func (q Queue) IsEmpty() bool {
	return len(q.entries) == 0
}

// Entry returns the entry at index i.
func (q Queue) Entry(i int) Entry {
	return q.entries[i]
}

// Entries returns a copy of the entries.
func (q Queue) Entries() []Entry {
	cp := make([]Entry, len(q.entries))
	copy(cp, q.entries)
	return cp
}

// Append returns a new queue with entries added to the tail.
func (q Queue) Append(entries ...Entry) Queue {
	cp := make([]Entry, 0, len(q.entries)+len(entries))
	cp = append(cp, q.entries...)
	cp = append(cp, entries...)
	return Queue{entries: cp}
}

// Valid reports whether c addresses a track in the queue.
func (q Queue) Valid(c Cursor) bool {
	if c.Entry < 0 || c.Entry >= len(q.entries) {
		return false
	}
	return c.Sub >= 0 && c.Sub < q.entries[c.Entry].Len()
}

// Current returns the track addressed by c.
func (q Queue) Current(c Cursor) (track.Track, bool) {
	if !q.Valid(c) {
		return track.Track{}, false
	}
	return q.entries[c.Entry].Track(c.Sub), true
}

// Next returns the successor of c.
// Inside an album or playlist the sub index advances; past the last track of an
// entry the next entry starts at sub index 0, wrapping to the first entry.
func (q Queue) Next(c Cursor) Cursor {
	if len(q.entries) == 0 {
		return Cursor{}
	}
	if c.Sub+1 < q.entries[c.Entry].Len() {
		return Cursor{Entry: c.Entry, Sub: c.Sub + 1}
	}
	return Cursor{Entry: (c.Entry + 1) % len(q.entries), Sub: 0}
}

// Prev returns the predecessor of c.
// Before the first track of an entry the previous entry is entered at its last
// sub index, wrapping to the last entry.
func (q Queue) Prev(c Cursor) Cursor {
	if len(q.entries) == 0 {
		return Cursor{}
	}
	if c.Sub > 0 {
		return Cursor{Entry: c.Entry, Sub: c.Sub - 1}
	}
	prev := (c.Entry - 1 + len(q.entries)) % len(q.entries)
	return Cursor{Entry: prev, Sub: q.entries[prev].Len() - 1}
}

// Last returns the cursor of the last track in the queue.
func (q Queue) Last() Cursor {
	if len(q.entries) == 0 {
		return Cursor{}
	}
	last := len(q.entries) - 1
	return Cursor{Entry: last, Sub: q.entries[last].Len() - 1}
}

// IsLast reports whether c is the last track of the queue.
func (q Queue) IsLast(c Cursor) bool {
	return len(q.entries) > 0 && c == q.Last()
}

// TrackCount returns the number of tracks across all entries.
func (q Queue) TrackCount() int {
	n := 0
	for _, e := range q.entries {
		n += e.Len()
	}
	return n
}

// TotalDuration returns the duration of all playable tracks.
func (q Queue) TotalDuration() time.Duration {
	var total time.Duration
	for _, e := range q.entries {
		for _, t := range e.Tracks() {
			total += t.Duration()
		}
	}
	return total
}
