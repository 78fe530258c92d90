package connect

import (
	"time"

	"github.com/osa030/tapedeck/internal/app/playback"
	"github.com/osa030/tapedeck/internal/domain/queue"
	"github.com/osa030/tapedeck/internal/domain/track"
)

// Empty is the request of procedures without arguments.
type Empty struct{}

// PlayQueueRequest replaces the queue and starts playing at (Entry, Sub).
type PlayQueueRequest struct {
	Refs  []string `json:"refs"` // "track:ID", "album:ID" or "playlist:ID"
	Entry int      `json:"entry"`
	Sub   int      `json:"sub"`
}

// EnqueueRequest appends to the queue.
type EnqueueRequest struct {
	Refs []string `json:"refs"`
}

// SeekRequest seeks inside the current track.
type SeekRequest struct {
	PositionMs int64 `json:"positionMs"`
}

// JumpRequest moves the cursor. Sub is ignored by JumpToEntry.
type JumpRequest struct {
	Entry int `json:"entry"`
	Sub   int `json:"sub"`
}

// ToggleRepeatResponse holds the repeat mode after toggling.
type ToggleRepeatResponse struct {
	Repeat string `json:"repeat"`
}

// PlayerState is the wire form of a playback state snapshot.
type PlayerState struct {
	SequenceNo uint64       `json:"sequenceNo,omitempty"`
	Status     string       `json:"status"` // unavailable, loading or available
	Entries    []QueueEntry `json:"entries,omitempty"`
	Cursor     Cursor       `json:"cursor"`
	Current    *QueueTrack  `json:"current,omitempty"`
	IsPlaying  bool         `json:"isPlaying"`
	Repeat     string       `json:"repeat,omitempty"`
	ElapsedMs  int64        `json:"elapsedMs"`
	DurationMs int64        `json:"durationMs"`
	Enabled    bool         `json:"enabled"`
}

// Cursor addresses a track in the queue.
type Cursor struct {
	Entry int `json:"entry"`
	Sub   int `json:"sub"`
}

// QueueEntry is one top-level queue entry.
type QueueEntry struct {
	Kind        string       `json:"kind"` // track, album or playlist
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	ReleaseDate string       `json:"releaseDate,omitempty"`
	Tracks      []QueueTrack `json:"tracks"`
}

// QueueTrack is a resolved track.
type QueueTrack struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists,omitempty"`
	Album      string   `json:"album,omitempty"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	DurationMs int64    `json:"durationMs"`
	Playable   bool     `json:"playable"`
}

// Elapsed returns the elapsed time as a duration.
func (s *PlayerState) Elapsed() time.Duration {
	return time.Duration(s.ElapsedMs) * time.Millisecond
}

// Duration returns the current track duration.
func (s *PlayerState) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

func newPlayerState(seq uint64, st playback.State) *PlayerState {
	msg := &PlayerState{
		SequenceNo: seq,
		Status:     st.Status().String(),
	}

	switch v := st.(type) {
	case playback.Available:
		entries := v.Queue.Entries()
		msg.Entries = make([]QueueEntry, len(entries))
		for i, e := range entries {
			msg.Entries[i] = newQueueEntry(e)
		}
		cur := newQueueTrack(v.Current())
		msg.Current = &cur
		msg.Cursor = Cursor{Entry: v.Cursor.Entry, Sub: v.Cursor.Sub}
		msg.IsPlaying = v.IsPlaying
		msg.Repeat = v.Repeat.String()
		msg.ElapsedMs = v.Elapsed.Milliseconds()
		msg.DurationMs = v.Duration.Milliseconds()
		msg.Enabled = v.Enabled
	case playback.Loading, playback.Unavailable:
	}
	return msg
}

func newQueueEntry(e queue.Entry) QueueEntry {
	msg := QueueEntry{
		Kind:  queue.Kind(e).String(),
		Title: queue.Title(e),
	}
	switch v := e.(type) {
	case queue.TrackEntry:
		msg.ID = v.Item.ID
		if v.Item.Album != nil {
			msg.ImageURL = v.Item.Album.ImageURL
		}
	case queue.AlbumEntry:
		msg.ID = v.Album.ID
		msg.ImageURL = v.Album.ImageURL
		msg.ReleaseDate = v.Album.ReleaseDate
	case queue.PlaylistEntry:
		msg.ID = v.Playlist.ID
		msg.ImageURL = v.Playlist.ImageURL
	}

	tracks := e.Tracks()
	msg.Tracks = make([]QueueTrack, len(tracks))
	for i, t := range tracks {
		msg.Tracks[i] = newQueueTrack(t)
	}
	return msg
}

func newQueueTrack(t track.Track) QueueTrack {
	msg := QueueTrack{
		ID:         t.ID,
		Name:       t.Name,
		Artists:    t.ArtistNames(),
		DurationMs: t.Duration().Milliseconds(),
		Playable:   t.Playable(),
	}
	if t.Album != nil {
		msg.Album = t.Album.Name
		msg.ImageURL = t.Album.ImageURL
	}
	return msg
}
