// Package realtime carries store change events to open calendar views and
// turns them into fresh snapshots.
package realtime

import (
	"context"
	"sync"
	"time"
)

// Collection names a stream of change events.
type Collection string

const (
	CollectionBookings   Collection = "bookings"
	CollectionRooms      Collection = "rooms"
	CollectionCategories Collection = "categories"
)

// Collections lists every collection a calendar view depends on.
var Collections = []Collection{CollectionBookings, CollectionRooms, CollectionCategories}

// Op is the kind of change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ChangeEvent reports a committed write.
type ChangeEvent struct {
	Collection Collection `json:"collection"`
	Op         Op         `json:"op"`
	ID         string     `json:"id"`
	At         time.Time  `json:"at"`
}

// Publisher emits change events after writes commit.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// Feed hands out subscriptions to a collection. A subscription is released
// when Close is called or ctx ends.
type Feed interface {
	Subscribe(ctx context.Context, collection Collection) (*Subscription, error)
}

const subscriptionBuffer = 16

// Subscription is a channel of change events for one collection.
type Subscription struct {
	collection Collection
	events     chan ChangeEvent

	mu      sync.Mutex
	closed  bool
	release func()
	stop    func() bool
}

func newSubscription(ctx context.Context, collection Collection, release func()) *Subscription {
	sub := &Subscription{
		collection: collection,
		events:     make(chan ChangeEvent, subscriptionBuffer),
		release:    release,
	}
	stop := context.AfterFunc(ctx, func() { _ = sub.Close() })
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()
	return sub
}

// Collection returns the subscribed collection.
func (s *Subscription) Collection() Collection {
	return s.collection
}

// Events returns the event channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// deliver queues an event without blocking. When the buffer is full the
// event is dropped; consumers re-fetch on any event so a queued one suffices.
func (s *Subscription) deliver(event ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- event:
	default:
	}
	return true
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	release, stop := s.release, s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if release != nil {
		release()
	}
	return nil
}
