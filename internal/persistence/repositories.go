package persistence

import (
	"context"
	"time"

	"github.com/example/roombooking/internal/booking"
)

// BookingFilter narrows booking queries. Zero values do not filter.
type BookingFilter struct {
	RoomID          string
	OwnerID         string
	ExcludeID       string
	Statuses        []booking.Status
	ExcludeStatuses []booking.Status
	// StartsBefore keeps bookings whose first occurrence starts before the bound.
	StartsBefore *time.Time
	// EndsAfter keeps bookings with any occurrence ending after the bound.
	EndsAfter *time.Time
	Limit     int
	Offset    int
}

// RoomFilter narrows room queries.
type RoomFilter struct {
	EnabledOnly bool
	CategoryID  string
}

// BookingRepository stores bookings.
type BookingRepository interface {
	CreateBooking(ctx context.Context, b Booking) error
	UpdateBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
}

// CategoryRepository exposes CRUD operations for room categories.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category Category) error
	UpdateCategory(ctx context.Context, category Category) error
	GetCategory(ctx context.Context, id string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// OverlapGuard decides, inside the write transaction, whether candidate
// collides with the active bookings of its room returned by the store.
type OverlapGuard func(candidate Booking, others []Booking) (bool, error)
