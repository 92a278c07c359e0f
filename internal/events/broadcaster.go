package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Subscription is one listener on an application's event stream. Events
// arrive on C. The channel closes when the subscription is cancelled, the
// broadcaster shuts down, or the subscriber falls too far behind.
type Subscription struct {
	C <-chan Event

	topic uuid.UUID
	ch    chan Event
	once  sync.Once
}

// Broadcaster fans application events out to any number of subscribers.
// Publishing never blocks: a subscriber whose buffer is full is dropped
// and its channel closed, so one stalled consumer cannot hold up the
// workflow or its peers.
type Broadcaster struct {
	mu         sync.Mutex
	closed     bool
	bufferSize int
	topics     map[uuid.UUID]map[*Subscription]struct{}
	logger     *slog.Logger

	// onDrop, when set, observes every dropped subscriber.
	onDrop func()
}

// NewBroadcaster creates a broadcaster whose subscriber channels buffer
// bufferSize events.
func NewBroadcaster(bufferSize int, logger *slog.Logger) *Broadcaster {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Broadcaster{
		bufferSize: bufferSize,
		topics:     make(map[uuid.UUID]map[*Subscription]struct{}),
		logger:     logger.With("system", "events"),
	}
}

// OnDrop registers a callback invoked whenever a slow subscriber is
// dropped. Call before any Publish.
func (b *Broadcaster) OnDrop(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = fn
}

// Subscribe registers a listener for one application's events.
func (b *Broadcaster) Subscribe(applicationID uuid.UUID) *Subscription {
	sub := &Subscription{
		topic: applicationID,
		ch:    make(chan Event, b.bufferSize),
	}
	sub.C = sub.ch

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}

	subs, ok := b.topics[applicationID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[applicationID] = subs
	}
	subs[sub] = struct{}{}

	return sub
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// more than once and after the subscriber was already dropped.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	b.remove(sub)
	b.mu.Unlock()
}

// Publish delivers an event to every subscriber of its application.
// Subscribers that cannot accept the event immediately are dropped.
func (b *Broadcaster) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for sub := range b.topics[event.ApplicationID] {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("dropping slow subscriber",
				"application_id", event.ApplicationID,
				"seq", event.Seq)
			b.remove(sub)
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

// Close drops every subscription and rejects further publishes.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, subs := range b.topics {
		for sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	b.topics = make(map[uuid.UUID]map[*Subscription]struct{})
}

// remove expects b.mu held.
func (b *Broadcaster) remove(sub *Subscription) {
	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}
	sub.once.Do(func() { close(sub.ch) })
}
