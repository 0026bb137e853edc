// Package notification fans player events out to subscribers.
package notification

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/cuebox/internal/domain/song"
)

var (
	ErrStreamFull   = errors.New("notification stream is full")
	ErrStreamClosed = errors.New("notification stream is closed")
)

const (
	// sendTimeout bounds how long Broadcast waits for a single subscriber.
	sendTimeout = 500 * time.Millisecond
	// maxFailures consecutive failed sends drop a subscriber.
	maxFailures = 3
)

// Notification is one event delivered to subscribers.
type Notification struct {
	SequenceNo uint64
	Type       string     // e.g., "track_started", "track_skipped"
	State      string     // Player state when the event happened
	Song       *song.Song // Song concerned, if any
	Message    string     // Human readable detail, if any
	Time       time.Time
}

// Stream receives notifications for one subscriber. A Stream that also
// implements Close is closed when its subscription ends.
type Stream interface {
	Send(*Notification) error
}

type closer interface {
	Close()
}

type subscriber struct {
	id       string
	stream   Stream
	types    map[string]struct{} // empty means every type
	failures int
}

func (s *subscriber) wants(typ string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[typ]
	return ok
}

// Manager keeps the subscriber set and numbers every broadcast.
type Manager struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	sequenceNo  atomic.Uint64
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers stream for the given event types, or all of them when
// none are given, and returns the subscription id.
func (m *Manager) Subscribe(stream Stream, types ...string) string {
	sub := &subscriber{
		id:     uuid.New().String(),
		stream: stream,
		types: lo.SliceToMap(types, func(t string) (string, struct{}) {
			return t, struct{}{}
		}),
	}

	m.mu.Lock()
	m.subscribers[sub.id] = sub
	m.mu.Unlock()

	zlog.Debug().Msgf("notification: subscribed %s types=%v", sub.id, types)
	return sub.id
}

// Unsubscribe ends a subscription. Unknown ids are ignored.
func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	sub, ok := m.subscribers[id]
	delete(m.subscribers, id)
	m.mu.Unlock()

	if ok {
		closeStream(sub)
	}
}

// NextSequenceNo reserves and returns the next sequence number.
func (m *Manager) NextSequenceNo() uint64 {
	return m.sequenceNo.Add(1)
}

// Broadcast numbers n and delivers it to every interested subscriber in
// parallel. A subscriber that fails maxFailures times in a row is dropped.
func (m *Manager) Broadcast(n *Notification) {
	n.SequenceNo = m.NextSequenceNo()
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	m.mu.Lock()
	targets := lo.Filter(lo.Values(m.subscribers), func(s *subscriber, _ int) bool {
		return s.wants(n.Type)
	})
	m.mu.Unlock()

	results := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, sub := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = sendWithTimeout(sub.stream, n)
		}()
	}
	wg.Wait()

	var dropped []*subscriber
	m.mu.Lock()
	for i, sub := range targets {
		if results[i] == nil {
			sub.failures = 0
			continue
		}
		sub.failures++
		zlog.Debug().Err(results[i]).Msgf("notification: send to %s failed (%d): seq=%d", sub.id, sub.failures, n.SequenceNo)
		if sub.failures >= maxFailures || errors.Is(results[i], ErrStreamClosed) {
			if _, ok := m.subscribers[sub.id]; ok {
				delete(m.subscribers, sub.id)
				dropped = append(dropped, sub)
			}
		}
	}
	m.mu.Unlock()

	for _, sub := range dropped {
		zlog.Warn().Msgf("notification: dropping subscriber %s", sub.id)
		closeStream(sub)
	}
}

// Send delivers n to a single subscriber without numbering it.
func (m *Manager) Send(id string, n *Notification) error {
	m.mu.Lock()
	sub, ok := m.subscribers[id]
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.stream.Send(n)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Close ends every subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subscribers
	m.subscribers = make(map[string]*subscriber)
	m.mu.Unlock()

	for _, sub := range subs {
		closeStream(sub)
	}
}

func sendWithTimeout(stream Stream, n *Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- stream.Send(n)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "send timed out")
	}
}

func closeStream(sub *subscriber) {
	if c, ok := sub.stream.(closer); ok {
		c.Close()
	}
}

// ChannelStream is a Stream backed by a buffered channel. Sends never block.
type ChannelStream struct {
	mu     sync.Mutex
	ch     chan *Notification
	closed bool
}

// NewChannelStream creates a ChannelStream holding up to buffer notifications.
func NewChannelStream(buffer int) *ChannelStream {
	return &ChannelStream{ch: make(chan *Notification, buffer)}
}

// Send queues n, failing when the buffer is full or the stream is closed.
func (s *ChannelStream) Send(n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	select {
	case s.ch <- n:
		return nil
	default:
		return ErrStreamFull
	}
}

// Close closes the channel. It is safe to call more than once.
func (s *ChannelStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// C returns the channel notifications are delivered on. It is closed when
// the subscription ends.
func (s *ChannelStream) C() <-chan *Notification {
	return s.ch
}
