package scheduler

import (
	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/timeslot"
)

// Booking is the projection of a stored booking the detector compares
// against. Occurrences holds every interval the booking occupies; a
// non-recurring booking has exactly one.
type Booking struct {
	ID          string
	RoomID      string
	Status      booking.Status
	Occurrences []timeslot.Interval
}

// Candidate is the booking being submitted.
type Candidate struct {
	RoomID string
	// ExcludeID skips the stored copy of the booking being edited.
	ExcludeID   string
	Occurrences []timeslot.Interval
}

// Window returns the smallest interval covering every candidate occurrence.
func (c Candidate) Window() (timeslot.Interval, bool) {
	if len(c.Occurrences) == 0 {
		return timeslot.Interval{}, false
	}
	window := c.Occurrences[0]
	for _, occ := range c.Occurrences[1:] {
		if occ.Start.Before(window.Start) {
			window.Start = occ.Start
		}
		if occ.End.After(window.End) {
			window.End = occ.End
		}
	}
	return window, true
}

// Conflict details an overlapping booking relation that callers can present to users.
type Conflict struct {
	WithBookingID string
	RoomID        string
	Candidate     timeslot.Interval
	Existing      timeslot.Interval
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// only touch at an endpoint do not overlap.
func Overlaps(a, b timeslot.Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// DetectConflicts identifies conflicts for the candidate booking against
// existing ones. Bookings in other rooms, inactive bookings and the excluded
// booking are ignored.
func DetectConflicts(existing []Booking, candidate Candidate) []Conflict {
	var conflicts []Conflict
	for _, other := range existing {
		if other.RoomID != candidate.RoomID || !other.Status.IsActive() {
			continue
		}
		if candidate.ExcludeID != "" && other.ID == candidate.ExcludeID {
			continue
		}
		for _, want := range candidate.Occurrences {
			for _, held := range other.Occurrences {
				if Overlaps(want, held) {
					conflicts = append(conflicts, Conflict{
						WithBookingID: other.ID,
						RoomID:        other.RoomID,
						Candidate:     want,
						Existing:      held,
					})
				}
			}
		}
	}
	return conflicts
}
