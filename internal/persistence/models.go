package persistence

import (
	"time"

	"github.com/example/roombooking/internal/booking"
)

// Booking is a stored room reservation. Recurring bookings are a single
// record carrying their recurrence metadata.
type Booking struct {
	ID                string
	RoomID            string
	OwnerID           string
	Title             string
	Start             time.Time
	End               time.Time
	Status            booking.Status
	RepeatKind        booking.RepeatKind
	RecurrenceRule    *string
	RecurrenceEndDate *time.Time
	AllowGuests       bool
	GuestEmails       []string
	Remarks           string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OccupiedUntil returns the latest instant any occurrence of the booking can
// end. For a repeating booking that is the end of an occurrence starting on
// the last moment of its recurrence end date.
func (b Booking) OccupiedUntil() time.Time {
	if !b.RepeatKind.Repeats() || b.RecurrenceEndDate == nil {
		return b.End
	}
	y, m, d := b.RecurrenceEndDate.Date()
	lastDay := time.Date(y, m, d, 0, 0, 0, 0, b.RecurrenceEndDate.Location()).AddDate(0, 0, 1)
	until := lastDay.Add(b.End.Sub(b.Start))
	if until.Before(b.End) {
		return b.End
	}
	return until
}

// Room represents a meeting room catalog entry.
type Room struct {
	ID                 string
	Name               string
	Capacity           *int
	Facilities         *string
	AvailableTimeLimit *string
	Enabled            bool
	CategoryID         *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Category groups rooms for display.
type Category struct {
	ID                 string
	Name               string
	ManagerID          *string
	Color              *string
	AllowPublicBooking bool
	RequiresApproval   bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
