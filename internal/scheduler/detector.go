package scheduler

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrQueryFailed marks a detector result produced without consulting the store.
var ErrQueryFailed = errors.New("scheduler: booking query failed")

// Query selects the stored bookings a candidate must be compared with.
type Query struct {
	RoomID    string
	ExcludeID string
	From      time.Time
	To        time.Time
}

// BookingFinder loads the active bookings of a room whose occurrences
// intersect [From, To), already expanded into occurrences.
type BookingFinder interface {
	FindActiveBookings(ctx context.Context, query Query) ([]Booking, error)
}

// Result is the outcome of a conflict check.
type Result struct {
	Conflict  bool
	Conflicts []Conflict
}

// Detector answers whether a candidate may be written.
type Detector struct {
	finder BookingFinder
}

// NewDetector constructs a detector backed by finder.
func NewDetector(finder BookingFinder) *Detector {
	return &Detector{finder: finder}
}

// Check compares the candidate with the stored bookings of its room.
//
// The detector fails closed: when the stored bookings cannot be loaded the
// result reports a conflict and the returned error is marked ErrQueryFailed.
func (d *Detector) Check(ctx context.Context, candidate Candidate) (Result, error) {
	blocked := Result{Conflict: true}
	if d == nil || d.finder == nil {
		return blocked, errors.Wrap(ErrQueryFailed, "detector not configured")
	}

	window, ok := candidate.Window()
	if !ok {
		return Result{}, nil
	}

	existing, err := d.finder.FindActiveBookings(ctx, Query{
		RoomID:    candidate.RoomID,
		ExcludeID: candidate.ExcludeID,
		From:      window.Start,
		To:        window.End,
	})
	if err != nil {
		return blocked, errors.Mark(errors.Wrapf(err, "load bookings of room %s", candidate.RoomID), ErrQueryFailed)
	}

	conflicts := DetectConflicts(existing, candidate)
	return Result{Conflict: len(conflicts) > 0, Conflicts: conflicts}, nil
}
