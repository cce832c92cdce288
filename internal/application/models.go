package application

import (
	"time"

	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/calendar"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// BookingInput captures the booking form as submitted. Dates are calendar
// days; StartTime and EndTime are "HH:MM" times of day combined with DateFrom
// and DateTo respectively in the calendar location.
type BookingInput struct {
	RoomID            string
	Title             string
	DateFrom          time.Time
	DateTo            time.Time
	StartTime         string
	EndTime           string
	RepeatKind        booking.RepeatKind
	RecurrenceRule    string
	RecurrenceEndDate *time.Time
	AllowGuests       bool
	// GuestEmails is the raw comma-separated address list.
	GuestEmails string
	Remarks     string
}

// SubmitParams wraps the data required to create or edit a booking. An empty
// BookingID creates a new booking.
type SubmitParams struct {
	Principal Principal
	BookingID string
	Input     BookingInput
}

// TransitionParams identifies a lifecycle action on a booking.
type TransitionParams struct {
	Principal Principal
	BookingID string
}

// ViewRequest selects the calendar window to load.
type ViewRequest struct {
	View   calendar.View
	Date   time.Time
	Filter calendar.Filter
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name               string
	Capacity           *int
	Facilities         *string
	AvailableTimeLimit *string
	Enabled            bool
	CategoryID         *string
}

// SaveRoomParams wraps the data required to create (empty RoomID) or update a room.
type SaveRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// CategoryInput captures caller provided category fields.
type CategoryInput struct {
	Name               string
	ManagerID          *string
	Color              *string
	AllowPublicBooking bool
	RequiresApproval   bool
}

// SaveCategoryParams wraps the data required to create (empty CategoryID) or update a category.
type SaveCategoryParams struct {
	Principal  Principal
	CategoryID string
	Input      CategoryInput
}
