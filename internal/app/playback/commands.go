package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/domain/queue"
)

// PlayQueue replaces the queue with the resolved refs and starts playback at
// the given cursor. Loading is published while resolution is in flight.
func (c *Controller) PlayQueue(ctx context.Context, refs []queue.Ref, at queue.Cursor) error {
	return c.submit(ctx, "play_queue", func(ctx context.Context, t *tx) (State, error) {
		return c.playQueue(ctx, t, refs, at)
	})
}

// Play resumes playback.
func (c *Controller) Play(ctx context.Context) error {
	return c.submit(ctx, "play", c.play)
}

// Pause pauses playback.
func (c *Controller) Pause(ctx context.Context) error {
	return c.submit(ctx, "pause", c.pause)
}

// Seek moves the playback position inside the current track.
// The position is clamped to the track duration.
func (c *Controller) Seek(ctx context.Context, position time.Duration) error {
	return c.submit(ctx, "seek", func(ctx context.Context, t *tx) (State, error) {
		return c.seek(ctx, t, position)
	})
}

// Next moves to the next track, wrapping at the end of the queue.
func (c *Controller) Next(ctx context.Context) error {
	return c.submit(ctx, "next", func(ctx context.Context, t *tx) (State, error) {
		return c.step(ctx, t, true)
	})
}

// Previous moves to the previous track, wrapping at the start of the queue.
func (c *Controller) Previous(ctx context.Context) error {
	return c.submit(ctx, "previous", func(ctx context.Context, t *tx) (State, error) {
		return c.step(ctx, t, false)
	})
}

// Enqueue appends the resolved refs to the queue. Playback is not affected.
// Without a queue the refs become the queue with the first track loaded but
// not playing.
func (c *Controller) Enqueue(ctx context.Context, refs []queue.Ref) error {
	return c.submit(ctx, "enqueue", func(ctx context.Context, t *tx) (State, error) {
		return c.enqueue(ctx, t, refs)
	})
}

// JumpToEntry starts playback at the first track of entry i.
func (c *Controller) JumpToEntry(ctx context.Context, i int) error {
	return c.submit(ctx, "jump_to_entry", func(ctx context.Context, t *tx) (State, error) {
		return c.jump(ctx, t, queue.Cursor{Entry: i})
	})
}

// JumpToSubItem starts playback at track s of entry i.
func (c *Controller) JumpToSubItem(ctx context.Context, i, s int) error {
	return c.submit(ctx, "jump_to_sub_item", func(ctx context.Context, t *tx) (State, error) {
		return c.jump(ctx, t, queue.Cursor{Entry: i, Sub: s})
	})
}

// ToggleRepeat advances the repeat mode and returns the new mode.
func (c *Controller) ToggleRepeat(ctx context.Context) (RepeatMode, error) {
	var mode RepeatMode
	err := c.submit(ctx, "toggle_repeat", func(_ context.Context, t *tx) (State, error) {
		a, err := available(t.prev)
		if err != nil {
			return nil, err
		}
		a.Repeat = a.Repeat.Next()
		mode = a.Repeat
		return a, nil
	})
	if err != nil {
		return RepeatOff, err
	}
	return mode, nil
}

func (c *Controller) playQueue(ctx context.Context, t *tx, refs []queue.Ref, at queue.Cursor) (State, error) {
	if len(refs) == 0 {
		return nil, ErrNoRefs
	}

	repeat := RepeatOff
	if a, ok := t.prev.(Available); ok {
		repeat = a.Repeat
		if a.IsPlaying && a.Current().Playable() {
			if err := c.backend.Pause(ctx); err != nil {
				return nil, errors.Wrap(err, "failed to pause backend")
			}
			t.paused = true
		}
	}

	c.store.publish(Loading{})

	entries, err := c.resolver.ResolveAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	q := queue.New(entries...)
	if !q.Valid(at) {
		return nil, errors.Wrapf(ErrInvalidCursor, "play queue at %s", at)
	}

	next := Available{
		Queue:     q,
		Cursor:    at,
		IsPlaying: true,
		Repeat:    repeat,
	}
	if err := c.load(ctx, t, &next); err != nil {
		return nil, err
	}

	zlog.Info().Msgf("playback: queue replaced: entries=%d tracks=%d cursor=%s", q.Len(), q.TrackCount(), at)
	return next, nil
}

func (c *Controller) play(ctx context.Context, t *tx) (State, error) {
	a, err := available(t.prev)
	if err != nil {
		return nil, err
	}
	if a.IsPlaying {
		return a, nil
	}

	if a.Current().Playable() {
		if err := c.backend.Play(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to play")
		}
	}
	a.IsPlaying = true
	return a, nil
}

func (c *Controller) pause(ctx context.Context, t *tx) (State, error) {
	a, err := available(t.prev)
	if err != nil {
		return nil, err
	}
	if !a.IsPlaying {
		return a, nil
	}

	if a.Current().Playable() {
		if err := c.backend.Pause(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to pause")
		}
	}
	a.IsPlaying = false
	return a, nil
}

func (c *Controller) seek(ctx context.Context, t *tx, position time.Duration) (State, error) {
	a, err := available(t.prev)
	if err != nil {
		return nil, err
	}

	if position < 0 {
		position = 0
	}
	if a.Duration > 0 && position > a.Duration {
		position = a.Duration
	}

	if a.Current().Playable() {
		if err := c.backend.Seek(ctx, position); err != nil {
			return nil, errors.Wrapf(err, "failed to seek to %s", position)
		}
	}
	a.Elapsed = position
	c.dropPosition()
	return a, nil
}

func (c *Controller) step(ctx context.Context, t *tx, forward bool) (State, error) {
	a, err := available(t.prev)
	if err != nil {
		return nil, err
	}

	if a.IsPlaying && a.Current().Playable() {
		if err := c.backend.Stop(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to stop")
		}
		t.stopped = true
	}

	if forward {
		a.Cursor = a.Queue.Next(a.Cursor)
	} else {
		a.Cursor = a.Queue.Prev(a.Cursor)
	}

	if err := c.load(ctx, t, &a); err != nil {
		return nil, err
	}
	return a, nil
}

func (c *Controller) enqueue(ctx context.Context, t *tx, refs []queue.Ref) (State, error) {
	if len(refs) == 0 {
		return nil, ErrNoRefs
	}

	switch prev := t.prev.(type) {
	case Available:
		entries, err := c.resolver.ResolveAll(ctx, refs)
		if err != nil {
			return nil, err
		}
		prev.Queue = prev.Queue.Append(entries...)
		zlog.Info().Msgf("playback: enqueued: entries=%d total=%d", len(entries), prev.Queue.Len())
		return prev, nil

	case Unavailable, Loading:
		c.store.publish(Loading{})

		entries, err := c.resolver.ResolveAll(ctx, refs)
		if err != nil {
			return nil, err
		}
		next := Available{
			Queue:  queue.New(entries...),
			Repeat: RepeatOff,
		}
		if err := c.load(ctx, t, &next); err != nil {
			return nil, err
		}
		zlog.Info().Msgf("playback: queue created: entries=%d", next.Queue.Len())
		return next, nil

	default:
		return nil, errors.Newf("unknown state %T", t.prev)
	}
}

func (c *Controller) jump(ctx context.Context, t *tx, to queue.Cursor) (State, error) {
	a, err := available(t.prev)
	if err != nil {
		return nil, err
	}
	if !a.Queue.Valid(to) {
		return nil, errors.Wrapf(ErrInvalidCursor, "jump to %s", to)
	}

	if a.IsPlaying && a.Current().Playable() {
		if err := c.backend.Stop(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to stop")
		}
		t.stopped = true
	}

	a.Cursor = to
	a.IsPlaying = true
	if err := c.load(ctx, t, &a); err != nil {
		return nil, err
	}
	return a, nil
}

// finished handles the end of the current track. Events from an older load
// are ignored.
func (c *Controller) finished(ctx context.Context, t *tx, seq uint64) (State, error) {
	a, ok := t.prev.(Available)
	if !ok || seq != c.loadSeq.Load() {
		zlog.Debug().Msg("playback: stale finish event ignored")
		return t.prev, nil
	}

	if !c.config.AutoAdvance {
		a.IsPlaying = false
	} else {
		switch a.Repeat {
		case RepeatTrack:
		case RepeatList:
			a.Cursor = a.Queue.Next(a.Cursor)
		case RepeatOff:
			if a.Queue.IsLast(a.Cursor) {
				a.IsPlaying = false
			}
			a.Cursor = a.Queue.Next(a.Cursor)
		default:
			return nil, errors.Newf("unknown repeat mode %d", a.Repeat)
		}
	}

	// A failed load leaves the cursor on the track that could not be loaded,
	// paused, instead of replaying the finished one.
	if err := c.load(ctx, t, &a); err != nil {
		zlog.Warn().Msgf("playback: failed to load next track: cursor=%s error=%v", a.Cursor, err)
		c.logBackendErr("stop", c.backend.Stop(ctx))
		a.IsPlaying = false
	}
	return a, nil
}

// load points the backend at the track under a.Cursor and resets the
// position. Unplayable tracks issue no backend calls.
func (c *Controller) load(ctx context.Context, t *tx, a *Available) error {
	cur := a.Current()
	a.Duration = cur.Duration()
	a.Elapsed = 0
	c.loadSeq.Add(1)

	if !cur.Playable() {
		zlog.Debug().Msgf("playback: track has no playable source: id=%s cursor=%s", cur.ID, a.Cursor)
		return nil
	}

	t.sourceChanged = true
	if err := c.backend.SetSource(ctx, cur.Source.Locator); err != nil {
		return errors.Wrapf(err, "failed to set source %s", cur.Source.Locator)
	}
	// Reports from the old source may arrive while SetSource runs.
	c.loadSeq.Add(1)
	if a.IsPlaying {
		if err := c.backend.Play(ctx); err != nil {
			return errors.Wrap(err, "failed to play")
		}
	}
	zlog.Debug().Msgf("playback: loaded: id=%s cursor=%s playing=%v", cur.ID, a.Cursor, a.IsPlaying)
	return nil
}
