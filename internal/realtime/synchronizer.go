package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/roombooking/internal/notify"
)

// ErrSubscriptionDropped is returned by Run when a feed subscription ends
// while the view is still open.
var ErrSubscriptionDropped = errors.New("realtime: subscription dropped")

// FetchFunc loads a complete snapshot of a view's data.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Synchronizer keeps one view fresh: it fetches once, then re-fetches the
// whole snapshot whenever any watched collection changes.
type Synchronizer[T any] struct {
	feed        Feed
	fetch       FetchFunc[T]
	sink        notify.Sink
	logger      *slog.Logger
	collections []Collection
	updates     chan T

	mu     sync.Mutex
	stop   context.CancelFunc // set by the first Run
	closed bool
}

// NewSynchronizer constructs a synchronizer watching every calendar collection.
func NewSynchronizer[T any](feed Feed, fetch FetchFunc[T], sink notify.Sink, logger *slog.Logger) *Synchronizer[T] {
	if sink == nil {
		sink = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer[T]{
		feed:        feed,
		fetch:       fetch,
		sink:        sink,
		logger:      logger,
		collections: Collections,
		updates:     make(chan T),
	}
}

// Updates delivers each successfully fetched snapshot. It is closed when Run returns.
func (s *Synchronizer[T]) Updates() <-chan T {
	return s.updates
}

// Run subscribes, emits the initial snapshot and keeps emitting until ctx
// ends. Every subscription is released before Run returns.
func (s *Synchronizer[T]) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed || s.stop != nil {
		s.mu.Unlock()
		return nil
	}
	s.stop = cancel
	s.mu.Unlock()
	defer close(s.updates)

	subs := make([]*Subscription, 0, len(s.collections))
	defer func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}()
	for _, collection := range s.collections {
		sub, err := s.feed.Subscribe(ctx, collection)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", collection, err)
		}
		subs = append(subs, sub)
	}

	// A pending refresh is a single token; events arriving while a fetch is
	// running collapse into one more fetch.
	refresh := make(chan struct{}, 1)
	dropped := make(chan Collection, len(subs))
	for _, sub := range subs {
		go func(sub *Subscription) {
			for range sub.Events() {
				select {
				case refresh <- struct{}{}:
				default:
				}
			}
			if ctx.Err() == nil {
				dropped <- sub.Collection()
			}
		}(sub)
	}

	if !s.refresh(ctx) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case collection := <-dropped:
			s.logger.WarnContext(ctx, "change subscription dropped", "collection", string(collection))
			return fmt.Errorf("%w: %s", ErrSubscriptionDropped, collection)
		case <-refresh:
			if !s.refresh(ctx) {
				return nil
			}
		}
	}
}

// Close stops a running Run, which then releases its subscriptions. Run
// returns immediately on a closed synchronizer, and only the first call to
// Run does any work.
func (s *Synchronizer[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.stop != nil {
		s.stop()
	}
}

// refresh fetches and emits a snapshot. It reports false once ctx is done.
func (s *Synchronizer[T]) refresh(ctx context.Context) bool {
	data, err := s.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.logger.ErrorContext(ctx, "calendar refresh failed", "error", err)
		s.sink.Notify(ctx, notify.Notification{
			Title:       "Failed to refresh the calendar",
			Description: err.Error(),
			Severity:    notify.SeverityDestructive,
		})
		return true
	}

	select {
	case s.updates <- data:
		return true
	case <-ctx.Done():
		return false
	}
}
