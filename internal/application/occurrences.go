package application

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/persistence"
	"github.com/example/roombooking/internal/recurrence"
	"github.com/example/roombooking/internal/scheduler"
	"github.com/example/roombooking/internal/timeslot"
)

// Expander turns stored bookings into the intervals they occupy.
type Expander struct {
	engine *recurrence.Engine
}

// NewExpander wraps a recurrence engine. A nil engine uses the defaults.
func NewExpander(engine *recurrence.Engine) *Expander {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	return &Expander{engine: engine}
}

// Occurrences expands b. When window is non-nil only occurrences intersecting
// it are returned.
func (e *Expander) Occurrences(b persistence.Booking, window *timeslot.Interval) ([]timeslot.Interval, error) {
	var opts recurrence.GenerateOptions
	if window != nil {
		opts.RangeStart = &window.Start
		opts.RangeEnd = &window.End
	}
	occurrences, err := e.engine.GenerateOccurrences(seriesOf(b), opts)
	if err != nil {
		return nil, errors.Wrapf(err, "expand booking %s", b.ID)
	}
	out := make([]timeslot.Interval, len(occurrences))
	for i, occ := range occurrences {
		out[i] = timeslot.Interval{Start: occ.Start, End: occ.End}
	}
	return out, nil
}

func seriesOf(b persistence.Booking) recurrence.Series {
	series := recurrence.Series{
		BookingID: b.ID,
		Frequency: frequencyOf(b.RepeatKind),
		Start:     b.Start,
		End:       b.End,
		Until:     b.RecurrenceEndDate,
	}
	if b.RecurrenceRule != nil {
		series.Rule = *b.RecurrenceRule
	}
	return series
}

func frequencyOf(kind booking.RepeatKind) recurrence.Frequency {
	switch kind {
	case booking.RepeatDaily:
		return recurrence.FrequencyDaily
	case booking.RepeatWeekly:
		return recurrence.FrequencyWeekly
	case booking.RepeatCustom:
		return recurrence.FrequencyCustom
	}
	return recurrence.FrequencyNone
}

// OverlapGuard returns the commit-time check used by the booking store: it
// expands the candidate and the room's other active bookings and reports
// whether any occurrences intersect.
func (e *Expander) OverlapGuard() persistence.OverlapGuard {
	return func(candidate persistence.Booking, others []persistence.Booking) (bool, error) {
		want, err := e.Occurrences(candidate, nil)
		if err != nil {
			return false, err
		}
		cand := scheduler.Candidate{RoomID: candidate.RoomID, ExcludeID: candidate.ID, Occurrences: want}
		window, ok := cand.Window()
		if !ok {
			return false, nil
		}
		existing, err := e.project(others, &window)
		if err != nil {
			return false, err
		}
		return len(scheduler.DetectConflicts(existing, cand)) > 0, nil
	}
}

func (e *Expander) project(bookings []persistence.Booking, window *timeslot.Interval) ([]scheduler.Booking, error) {
	out := make([]scheduler.Booking, 0, len(bookings))
	for _, b := range bookings {
		occurrences, err := e.Occurrences(b, window)
		if err != nil {
			return nil, err
		}
		if len(occurrences) == 0 {
			continue
		}
		out = append(out, scheduler.Booking{
			ID:          b.ID,
			RoomID:      b.RoomID,
			Status:      b.Status,
			Occurrences: occurrences,
		})
	}
	return out, nil
}

// BookingFinder answers detector queries from the booking repository.
type BookingFinder struct {
	bookings persistence.BookingRepository
	expander *Expander
}

// NewBookingFinder constructs a finder over the repository.
func NewBookingFinder(bookings persistence.BookingRepository, expander *Expander) *BookingFinder {
	if expander == nil {
		expander = NewExpander(nil)
	}
	return &BookingFinder{bookings: bookings, expander: expander}
}

// FindActiveBookings loads the room's active bookings that may occupy any
// instant of the query window and expands them inside it.
func (f *BookingFinder) FindActiveBookings(ctx context.Context, query scheduler.Query) ([]scheduler.Booking, error) {
	if f == nil || f.bookings == nil {
		return nil, errors.New("booking repository not configured")
	}
	stored, err := f.bookings.ListBookings(ctx, persistence.BookingFilter{
		RoomID:       query.RoomID,
		ExcludeID:    query.ExcludeID,
		Statuses:     booking.ActiveStatuses,
		StartsBefore: &query.To,
		EndsAfter:    &query.From,
	})
	if err != nil {
		return nil, err
	}
	window := timeslot.Interval{Start: query.From, End: query.To}
	return f.expander.project(stored, &window)
}
