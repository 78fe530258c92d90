package playback

import (
	"context"
	"sync"
)

// store holds the published State. It has a single writer (the controller
// worker) and any number of readers.
type store struct {
	mu      sync.RWMutex
	state   State
	changed chan struct{} // closed and replaced on every publish
	closed  chan struct{}
	once    sync.Once
}

func newStore(initial State) *store {
	return &store{
		state:   initial,
		changed: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// load returns the latest state.
func (s *store) load() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// publish replaces the state and wakes all watchers.
func (s *store) publish(st State) {
	s.mu.Lock()
	s.state = st
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

func (s *store) current() (State, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.changed
}

func (s *store) close() {
	s.once.Do(func() { close(s.closed) })
}

// watch streams the latest state to the returned channel until ctx is done or
// the store is closed. Slow readers skip intermediate states.
func (s *store) watch(ctx context.Context) <-chan State {
	out := make(chan State, 1)

	go func() {
		defer close(out)
		for {
			st, changed := s.current()

			// Replace an unread value so the reader always gets the latest one.
			select {
			case out <- st:
			default:
				select {
				case <-out:
				default:
				}
				out <- st
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			}
		}
	}()

	return out
}
