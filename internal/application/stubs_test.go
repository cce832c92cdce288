package application

import (
	"context"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/example/roombooking/internal/notify"
	"github.com/example/roombooking/internal/persistence"
)

var jst = time.FixedZone("JST", 9*60*60)

// testNow is Tuesday 2024-01-09 12:00 JST.
var testNow = time.Date(2024, time.January, 9, 12, 0, 0, 0, jst)

func jan(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, jst)
}

func day(d int) time.Time {
	return jan(d, 0, 0)
}

// assertIs checks err against an application sentinel. Marked errors only
// match through errors.Is from cockroachdb/errors.
func assertIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("expected %v in chain, got %v", target, err)
	}
}

type bookingRepoStub struct {
	mu        sync.Mutex
	items     map[string]persistence.Booking
	creates   int
	updates   int
	createErr error
	updateErr error
	listErr   error
}

func newBookingRepoStub(seed ...persistence.Booking) *bookingRepoStub {
	r := &bookingRepoStub{items: map[string]persistence.Booking{}}
	for _, b := range seed {
		r.items[b.ID] = b
	}
	return r
}

func (r *bookingRepoStub) CreateBooking(ctx context.Context, b persistence.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.creates++
	r.items[b.ID] = b
	return nil
}

func (r *bookingRepoStub) UpdateBooking(ctx context.Context, b persistence.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.items[b.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.updates++
	r.items[b.ID] = b
	return nil
}

func (r *bookingRepoStub) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

func (r *bookingRepoStub) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []persistence.Booking
	for _, b := range r.items {
		switch {
		case filter.RoomID != "" && b.RoomID != filter.RoomID:
			continue
		case filter.ExcludeID != "" && b.ID == filter.ExcludeID:
			continue
		case len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, b.Status):
			continue
		case filter.StartsBefore != nil && !b.Start.Before(*filter.StartsBefore):
			continue
		case filter.EndsAfter != nil && !b.OccupiedUntil().After(*filter.EndsAfter):
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (r *bookingRepoStub) writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates + r.updates
}

type roomRepoStub struct {
	rooms   map[string]persistence.Room
	getErr  error
	listErr error
	created []persistence.Room
	updated []persistence.Room
	saveErr error
}

func newRoomRepoStub(rooms ...persistence.Room) *roomRepoStub {
	r := &roomRepoStub{rooms: map[string]persistence.Room{}}
	for _, room := range rooms {
		r.rooms[room.ID] = room
	}
	return r
}

func (r *roomRepoStub) CreateRoom(ctx context.Context, room persistence.Room) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.created = append(r.created, room)
	r.rooms[room.ID] = room
	return nil
}

func (r *roomRepoStub) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.updated = append(r.updated, room)
	r.rooms[room.ID] = room
	return nil
}

func (r *roomRepoStub) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if r.getErr != nil {
		return persistence.Room{}, r.getErr
	}
	room, ok := r.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (r *roomRepoStub) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []persistence.Room
	for _, room := range r.rooms {
		if filter.EnabledOnly && !room.Enabled {
			continue
		}
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type categoryRepoStub struct {
	items   map[string]persistence.Category
	saveErr error
	listErr error
}

func newCategoryRepoStub(categories ...persistence.Category) *categoryRepoStub {
	r := &categoryRepoStub{items: map[string]persistence.Category{}}
	for _, c := range categories {
		r.items[c.ID] = c
	}
	return r
}

func (r *categoryRepoStub) CreateCategory(ctx context.Context, c persistence.Category) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.items[c.ID] = c
	return nil
}

func (r *categoryRepoStub) UpdateCategory(ctx context.Context, c persistence.Category) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.items[c.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.items[c.ID] = c
	return nil
}

func (r *categoryRepoStub) GetCategory(ctx context.Context, id string) (persistence.Category, error) {
	c, ok := r.items[id]
	if !ok {
		return persistence.Category{}, persistence.ErrNotFound
	}
	return c, nil
}

func (r *categoryRepoStub) ListCategories(ctx context.Context) ([]persistence.Category, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []persistence.Category
	for _, c := range r.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type recordingSink struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (s *recordingSink) Notify(ctx context.Context, n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
}

func (s *recordingSink) all() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification(nil), s.items...)
}
