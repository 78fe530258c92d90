package playback

import (
	"context"
	"sync"
)

// command is a unit of work executed by the controller worker.
type command struct {
	name string
	run  func(ctx context.Context, tx *tx) (State, error)
	done chan error // buffered; nil for fire-and-forget commands
}

func (c *command) finish(err error) {
	if c.done != nil {
		c.done <- err
	}
}

// mailbox is an unbounded FIFO of commands. push never blocks, so backend
// callbacks can submit commands while the worker is busy.
type mailbox struct {
	mu     sync.Mutex
	items  []*command
	closed bool
	wake   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) push(c *command) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.items = append(m.items, c)
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *mailbox) pop() (*command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, false
	}
	c := m.items[0]
	m.items[0] = nil
	m.items = m.items[1:]
	return c, true
}

// notify wakes the worker without blocking.
func (m *mailbox) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// close rejects further pushes and returns the commands that never ran.
func (m *mailbox) close() []*command {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	pending := m.items
	m.items = nil
	return pending
}
