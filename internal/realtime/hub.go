package realtime

import (
	"context"
	"sync"
)

// Hub is an in-process Feed and Publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[Collection]map[*Subscription]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[Collection]map[*Subscription]struct{})}
}

// Subscribe registers a subscription for collection.
func (h *Hub) Subscribe(ctx context.Context, collection Collection) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sub *Subscription
	sub = newSubscription(ctx, collection, func() { h.remove(collection, sub) })

	h.mu.Lock()
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[*Subscription]struct{})
	}
	h.subs[collection][sub] = struct{}{}
	h.mu.Unlock()

	// ctx may have ended before the entry was added.
	if err := ctx.Err(); err != nil {
		_ = sub.Close()
		h.remove(collection, sub)
		return nil, err
	}

	return sub, nil
}

// Publish fans the event out to every subscriber of its collection.
func (h *Hub) Publish(ctx context.Context, event ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[event.Collection] {
		sub.deliver(event)
	}
	return nil
}

// Subscribers returns the number of live subscriptions for collection.
func (h *Hub) Subscribers(collection Collection) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[collection])
}

func (h *Hub) remove(collection Collection, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[collection], sub)
	if len(h.subs[collection]) == 0 {
		delete(h.subs, collection)
	}
}
