package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/domain/queue"
)

// Errors
var (
	ErrUnavailable   = errors.New("no queue loaded")
	ErrInvalidCursor = errors.New("cursor out of range")
	ErrNoRefs        = errors.New("no references given")
	ErrClosed        = errors.New("controller closed")
)

// Resolver resolves queue references into entries.
type Resolver interface {
	ResolveAll(ctx context.Context, refs []queue.Ref) ([]queue.Entry, error)
}

// Config holds controller configuration.
type Config struct {
	PositionPollInterval time.Duration // Poll Backend.Position at this interval (0 disables polling)
	AutoAdvance          bool          // Advance to the next track when the current one finishes
}

// tx records the backend side effects of the running command so that a
// failed command can put the backend back where it was.
type tx struct {
	prev          State
	paused        bool // backend paused by this command
	stopped       bool // backend stopped by this command
	sourceChanged bool // a new source was loaded
}

// Controller is the playback queue controller.
//
// All commands run one at a time on a single worker goroutine, in the order
// they were submitted. A command holds the worker for its whole duration,
// including resolution and backend calls.
type Controller struct {
	backend  Backend
	resolver Resolver
	config   Config

	store *store
	box   *mailbox

	loadSeq atomic.Uint64 // bumped around every load; events from older loads are stale

	posMu    sync.Mutex
	position positionReport

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// positionReport is the latest unapplied position and the load it belongs to.
type positionReport struct {
	pos time.Duration
	seq uint64
	set bool
}

// NewController creates a controller and subscribes to backend events.
func NewController(backend Backend, resolver Resolver, config Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:  backend,
		resolver: resolver,
		config:   config,
		store:    newStore(Unavailable{}),
		box:      newMailbox(),
		ctx:      ctx,
		cancel:   cancel,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	backend.SetListener(backendListener{c: c})

	go c.run()
	if config.PositionPollInterval > 0 {
		go c.pollPosition(config.PositionPollInterval)
	}

	return c
}

// State returns the latest published state.
func (c *Controller) State() State {
	return c.store.load()
}

// Watch returns a channel that always holds the latest state.
// Intermediate states may be skipped. The channel is closed when ctx is done
// or the controller is closed.
func (c *Controller) Watch(ctx context.Context) <-chan State {
	return c.store.watch(ctx)
}

// Close rejects queued commands, waits for the running one and closes the
// backend.
func (c *Controller) Close() error {
	var err error
	c.once.Do(func() {
		for _, cmd := range c.box.close() {
			cmd.finish(ErrClosed)
		}
		close(c.quit)
		<-c.done
		c.cancel()
		c.store.close()
		err = c.backend.Close()
	})
	return err
}

// submit queues a command and waits for its result. A cancelled ctx stops the
// wait but not the command.
func (c *Controller) submit(ctx context.Context, name string, run func(context.Context, *tx) (State, error)) error {
	cmd := &command{
		name: name,
		run:  run,
		done: make(chan error, 1),
	}
	if err := c.box.push(cmd); err != nil {
		return err
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run() {
	defer close(c.done)

	for {
		c.applyPosition()

		cmd, ok := c.box.pop()
		if !ok {
			select {
			case <-c.box.wake:
			case <-c.quit:
				return
			}
			continue
		}

		c.execute(cmd)
	}
}

func (c *Controller) execute(cmd *command) {
	prev := c.store.load()
	c.store.publish(withEnabled(prev, false))
	zlog.Debug().Msgf("playback: %s: state=%s", cmd.name, prev.Status())

	t := &tx{prev: prev}
	next, err := cmd.run(c.ctx, t)
	if err != nil {
		zlog.Warn().Msgf("playback: %s failed, restoring state: error=%v", cmd.name, err)
		c.rollback(t)
		c.store.publish(withEnabled(prev, true))
		cmd.finish(err)
		return
	}

	c.store.publish(withEnabled(next, true))
	cmd.finish(nil)
}

// rollback undoes the backend side effects recorded in t.
func (c *Controller) rollback(t *tx) {
	ctx := c.ctx

	a, ok := t.prev.(Available)
	if !ok {
		if t.sourceChanged {
			c.logBackendErr("rollback stop", c.backend.Stop(ctx))
		}
		return
	}

	cur := a.Current()
	switch {
	case t.sourceChanged || t.stopped:
		c.loadSeq.Add(1)
		if !cur.Playable() {
			c.logBackendErr("rollback stop", c.backend.Stop(ctx))
			return
		}
		if err := c.backend.SetSource(ctx, cur.Source.Locator); err != nil {
			c.logBackendErr("rollback set source", err)
			return
		}
		c.loadSeq.Add(1)
		if a.Elapsed > 0 {
			c.logBackendErr("rollback seek", c.backend.Seek(ctx, a.Elapsed))
		}
		if a.IsPlaying {
			c.logBackendErr("rollback play", c.backend.Play(ctx))
		}
	case t.paused:
		c.logBackendErr("rollback play", c.backend.Play(ctx))
	}
}

func (c *Controller) logBackendErr(op string, err error) {
	if err != nil {
		zlog.Error().Msgf("playback: backend %s failed: error=%v", op, err)
	}
}

// setPosition records a position report taken while load seq was current.
// It is applied between commands.
func (c *Controller) setPosition(seq uint64, p time.Duration) {
	c.posMu.Lock()
	c.position = positionReport{pos: p, seq: seq, set: true}
	c.posMu.Unlock()
	c.box.notify()
}

// dropPosition forgets the pending report.
func (c *Controller) dropPosition() {
	c.posMu.Lock()
	c.position.set = false
	c.posMu.Unlock()
}

// applyPosition publishes the pending report unless another source was
// loaded after it was taken.
func (c *Controller) applyPosition() {
	c.posMu.Lock()
	r := c.position
	c.position.set = false
	c.posMu.Unlock()

	if !r.set {
		return
	}
	if r.seq != c.loadSeq.Load() {
		zlog.Debug().Msgf("playback: stale position ignored: position=%s", r.pos)
		return
	}
	a, ok := c.store.load().(Available)
	if !ok {
		return
	}
	a.Elapsed = r.pos
	c.store.publish(a)
}

func (c *Controller) pollPosition(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			a, ok := c.store.load().(Available)
			if !ok || !a.IsPlaying || !a.Current().Playable() {
				continue
			}
			seq := c.loadSeq.Load()
			pos, err := c.backend.Position(c.ctx)
			if err != nil {
				zlog.Debug().Msgf("playback: position poll failed: error=%v", err)
				continue
			}
			c.setPosition(seq, pos)
		}
	}
}

// backendListener maps backend events onto the controller.
type backendListener struct {
	c *Controller
}

func (l backendListener) OnStarted() {
	zlog.Debug().Msg("playback: backend started")
}

func (l backendListener) OnPaused() {
	zlog.Debug().Msg("playback: backend paused")
}

func (l backendListener) OnStopped() {
	zlog.Debug().Msg("playback: backend stopped")
}

func (l backendListener) OnPositionChanged(position time.Duration) {
	l.c.setPosition(l.c.loadSeq.Load(), position)
}

func (l backendListener) OnFinished() {
	seq := l.c.loadSeq.Load()
	err := l.c.box.push(&command{
		name: "finished",
		run: func(ctx context.Context, t *tx) (State, error) {
			return l.c.finished(ctx, t, seq)
		},
	})
	if err != nil {
		zlog.Debug().Msgf("playback: finish event dropped: error=%v", err)
	}
}

func withEnabled(st State, enabled bool) State {
	if a, ok := st.(Available); ok {
		a.Enabled = enabled
		return a
	}
	return st
}

func available(st State) (Available, error) {
	switch v := st.(type) {
	case Available:
		return v, nil
	case Unavailable, Loading:
		return Available{}, ErrUnavailable
	default:
		return Available{}, errors.Newf("unknown state %T", st)
	}
}
