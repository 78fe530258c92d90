// Package notification provides the notification manager for broadcasting
// playback state to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/app/playback"
)

const defaultSendTimeout = 500 * time.Millisecond

// ErrSendTimeout is reported when a subscriber does not accept a notification in time.
var ErrSendTimeout = errors.New("notification send timed out")

// Notification is a playback state snapshot with a sequence number.
type Notification struct {
	SequenceNo uint64
	State      playback.State
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// Config holds notification manager configuration.
type Config struct {
	SendTimeout time.Duration // Subscribers slower than this are dropped
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
	done   chan struct{}
	once   sync.Once

	sendMu  sync.Mutex
	lastSeq uint64
}

// send delivers n unless a newer notification was already delivered.
func (s *subscription) send(n *Notification) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if n.SequenceNo <= s.lastSeq {
		return nil
	}
	if err := s.stream.Send(n); err != nil {
		return err
	}
	s.lastSeq = n.SequenceNo
	return nil
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	last          *Notification
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
func NewManager(config Config) *Manager {
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaultSendTimeout
	}
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   config.SendTimeout,
	}
}

// Subscribe adds a new subscription and delivers the latest notification to it.
// It returns the subscription ID and a channel that is closed when the
// subscription is dropped.
func (m *Manager) Subscribe(stream Stream) (string, <-chan struct{}) {
	sub := &subscription{
		id:     uuid.New().String(),
		stream: stream,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.subscriptions[sub.id] = sub
	last := m.last
	m.mu.Unlock()

	zlog.Debug().Msgf("notification: subscribed: id=%s", sub.id)

	if last != nil {
		m.deliver(sub, last)
	}
	return sub.id, sub.done
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	sub, ok := m.subscriptions[subscriptionID]
	delete(m.subscriptions, subscriptionID)
	m.mu.Unlock()

	if ok {
		sub.close()
		zlog.Debug().Msgf("notification: unsubscribed: id=%s", subscriptionID)
	}
}

// Last returns the latest broadcast notification, or nil.
func (m *Manager) Last() *Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Broadcast sends a state to all subscribers and returns the notification sent.
// Sends run in parallel; a subscriber that fails or times out is dropped.
func (m *Manager) Broadcast(state playback.State) *Notification {
	m.mu.Lock()
	m.sequenceNo++
	n := &Notification{SequenceNo: m.sequenceNo, State: state}
	m.last = n
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			m.deliver(s, n)
		}(sub)
	}
	wg.Wait()

	return n
}

// deliver sends n to s with a timeout and drops s on failure.
func (m *Manager) deliver(s *subscription, n *Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.send(n)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ErrSendTimeout
	}
	if err != nil {
		zlog.Warn().Msgf("notification: dropping subscriber: id=%s seq=%d error=%v", s.id, n.SequenceNo, err)
		m.Unsubscribe(s.id)
	}
}

// Run broadcasts every state received from states until the channel is
// closed or ctx is done.
func (m *Manager) Run(ctx context.Context, states <-chan playback.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			m.Broadcast(st)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]*subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
