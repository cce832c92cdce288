package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/persistence"
)

var (
	roomCounter     uint64
	categoryCounter uint64
	bookingCounter  uint64
)

var location = time.FixedZone("JST", 9*60*60)

var referenceTime = time.Date(2025, time.January, 15, 9, 0, 0, 0, location)

// Location is the calendar time zone used by fixtures.
func Location() *time.Location {
	return location
}

// ReferenceTime returns the canonical "now" used by fixtures: a Wednesday
// morning in the calendar time zone.
func ReferenceTime() time.Time {
	return referenceTime
}

// Day returns midnight of the given January 2025 day in the calendar zone.
func Day(day int) time.Time {
	return time.Date(2025, time.January, day, 0, 0, 0, 0, location)
}

// At returns the instant hh:mm on the given January 2025 day.
func At(day, hour, minute int) time.Time {
	return time.Date(2025, time.January, day, hour, minute, 0, 0, location)
}

// Member and Admin are the principals most tests act as.
var (
	Member = application.Principal{UserID: "user-member"}
	Admin  = application.Principal{UserID: "user-admin", IsAdmin: true}
)

// ----------------------------- Room fixtures -----------------------------

// RoomOption configures the generated room.
type RoomOption func(*persistence.Room)

// NewRoom returns a deterministic enabled room with optional overrides.
func NewRoom(opts ...RoomOption) persistence.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	room := persistence.Room{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Enabled:   true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(r *persistence.Room) { r.ID = id }
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(r *persistence.Room) { r.Name = name }
}

// WithRoomCapacity sets the room capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(r *persistence.Room) { r.Capacity = &capacity }
}

// WithRoomCategory assigns the room to a category.
func WithRoomCategory(categoryID string) RoomOption {
	return func(r *persistence.Room) { r.CategoryID = &categoryID }
}

// WithRoomDisabled marks the room as unavailable for booking.
func WithRoomDisabled() RoomOption {
	return func(r *persistence.Room) { r.Enabled = false }
}

// --------------------------- Category fixtures ---------------------------

// CategoryOption configures the generated category.
type CategoryOption func(*persistence.Category)

// NewCategory returns a deterministic category with optional overrides.
func NewCategory(opts ...CategoryOption) persistence.Category {
	idx := atomic.AddUint64(&categoryCounter, 1)
	category := persistence.Category{
		ID:                 fmt.Sprintf("category-%03d", idx),
		Name:               fmt.Sprintf("Category %03d", idx),
		AllowPublicBooking: true,
		CreatedAt:          referenceTime,
		UpdatedAt:          referenceTime,
	}
	for _, opt := range opts {
		opt(&category)
	}
	return category
}

// WithCategoryID overrides the generated category ID.
func WithCategoryID(id string) CategoryOption {
	return func(c *persistence.Category) { c.ID = id }
}

// WithCategoryColor sets the display color.
func WithCategoryColor(color string) CategoryOption {
	return func(c *persistence.Category) { c.Color = &color }
}

// WithCategoryApproval toggles whether bookings in the category need approval.
func WithCategoryApproval(required bool) CategoryOption {
	return func(c *persistence.Category) { c.RequiresApproval = required }
}

// ---------------------------- Booking fixtures ----------------------------

// BookingOption configures the generated booking.
type BookingOption func(*persistence.Booking)

// NewBooking returns a pending one-hour booking at 10:00 on the reference day
// owned by Member.
func NewBooking(roomID string, opts ...BookingOption) persistence.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	start := time.Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day(), 10, 0, 0, 0, location)
	b := persistence.Booking{
		ID:         fmt.Sprintf("booking-%03d", idx),
		RoomID:     roomID,
		OwnerID:    Member.UserID,
		Title:      fmt.Sprintf("Meeting %03d", idx),
		Start:      start,
		End:        start.Add(time.Hour),
		Status:     booking.StatusPending,
		RepeatKind: booking.RepeatNone,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// WithBookingID overrides the generated booking ID.
func WithBookingID(id string) BookingOption {
	return func(b *persistence.Booking) { b.ID = id }
}

// WithBookingOwner sets the owner.
func WithBookingOwner(ownerID string) BookingOption {
	return func(b *persistence.Booking) { b.OwnerID = ownerID }
}

// WithBookingTitle overrides the generated title.
func WithBookingTitle(title string) BookingOption {
	return func(b *persistence.Booking) { b.Title = title }
}

// WithBookingSpan sets the start and end instants.
func WithBookingSpan(start, end time.Time) BookingOption {
	return func(b *persistence.Booking) {
		b.Start = start
		b.End = end
	}
}

// WithBookingStatus sets the lifecycle status.
func WithBookingStatus(status booking.Status) BookingOption {
	return func(b *persistence.Booking) { b.Status = status }
}

// WithBookingRepeat makes the booking a series ending on until.
func WithBookingRepeat(kind booking.RepeatKind, until time.Time) BookingOption {
	return func(b *persistence.Booking) {
		b.RepeatKind = kind
		b.RecurrenceEndDate = &until
	}
}

// WithBookingRule makes the booking a custom series driven by an RRULE.
func WithBookingRule(rule string, until time.Time) BookingOption {
	return func(b *persistence.Booking) {
		b.RepeatKind = booking.RepeatCustom
		b.RecurrenceRule = &rule
		b.RecurrenceEndDate = &until
	}
}

// ------------------------------ Form fixtures ------------------------------

// FormOption configures a booking form.
type FormOption func(*application.BookingInput)

// NewBookingForm returns a valid single-day form for roomID on the given
// January 2025 day.
func NewBookingForm(roomID string, day int, from, to string, opts ...FormOption) application.BookingInput {
	input := application.BookingInput{
		RoomID:     roomID,
		Title:      "Planning",
		DateFrom:   Day(day),
		DateTo:     Day(day),
		StartTime:  from,
		EndTime:    to,
		RepeatKind: booking.RepeatNone,
	}
	for _, opt := range opts {
		opt(&input)
	}
	return input
}

// WithFormTitle overrides the form title.
func WithFormTitle(title string) FormOption {
	return func(in *application.BookingInput) { in.Title = title }
}

// WithFormRepeat makes the form a series ending on the given January 2025 day.
func WithFormRepeat(kind booking.RepeatKind, untilDay int) FormOption {
	return func(in *application.BookingInput) {
		until := Day(untilDay)
		in.RepeatKind = kind
		in.RecurrenceEndDate = &until
	}
}

// WithFormGuests enables guests with the raw address list.
func WithFormGuests(emails string) FormOption {
	return func(in *application.BookingInput) {
		in.AllowGuests = true
		in.GuestEmails = emails
	}
}
