package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/timeslot"
)

var jst = time.FixedZone("JST", 9*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, jst)
}

func span(start, end time.Time) timeslot.Interval {
	return timeslot.Interval{Start: start, End: end}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	nine, ten, eleven := at(10, 9, 0), at(10, 10, 0), at(10, 11, 0)
	halfPast := at(10, 9, 30)

	cases := []struct {
		name string
		a, b timeslot.Interval
		want bool
	}{
		{"partial overlap", span(nine, ten), span(halfPast, eleven), true},
		{"touching endpoints", span(nine, ten), span(ten, eleven), false},
		{"containment", span(nine, eleven), span(halfPast, ten), true},
		{"identical", span(nine, ten), span(nine, ten), true},
		{"disjoint", span(nine, halfPast), span(ten, eleven), false},
		{"across offsets", span(nine, ten), span(at(10, 9, 45).In(time.UTC), at(10, 10, 15).In(time.UTC)), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.a, tc.b))
			assert.Equal(t, Overlaps(tc.a, tc.b), Overlaps(tc.b, tc.a), "overlap must be symmetric")
		})
	}
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "approved", RoomID: "room-r", Status: booking.StatusApproved, Occurrences: []timeslot.Interval{span(at(10, 9, 0), at(10, 10, 0))}},
		{ID: "cancelled", RoomID: "room-r", Status: booking.StatusCancelled, Occurrences: []timeslot.Interval{span(at(10, 12, 0), at(10, 13, 0))}},
		{ID: "rejected", RoomID: "room-r", Status: booking.StatusRejected, Occurrences: []timeslot.Interval{span(at(10, 14, 0), at(10, 15, 0))}},
		{ID: "elsewhere", RoomID: "room-s", Status: booking.StatusPending, Occurrences: []timeslot.Interval{span(at(10, 9, 0), at(10, 10, 0))}},
	}

	t.Run("room overlap produces conflict", func(t *testing.T) {
		got := DetectConflicts(existing, Candidate{RoomID: "room-r", Occurrences: []timeslot.Interval{span(at(10, 9, 30), at(10, 10, 30))}})
		require.Len(t, got, 1)
		assert.Equal(t, "approved", got[0].WithBookingID)
	})

	t.Run("touching interval yields no conflict", func(t *testing.T) {
		got := DetectConflicts(existing, Candidate{RoomID: "room-r", Occurrences: []timeslot.Interval{span(at(10, 10, 0), at(10, 11, 0))}})
		assert.Empty(t, got)
	})

	t.Run("inactive bookings never conflict", func(t *testing.T) {
		got := DetectConflicts(existing, Candidate{RoomID: "room-r", Occurrences: []timeslot.Interval{span(at(10, 12, 0), at(10, 15, 0))}})
		assert.Empty(t, got)
	})

	t.Run("other rooms are ignored", func(t *testing.T) {
		got := DetectConflicts(existing, Candidate{RoomID: "room-t", Occurrences: []timeslot.Interval{span(at(10, 9, 0), at(10, 10, 0))}})
		assert.Empty(t, got)
	})

	t.Run("editing in place excludes the booking itself", func(t *testing.T) {
		got := DetectConflicts(existing, Candidate{RoomID: "room-r", ExcludeID: "approved", Occurrences: []timeslot.Interval{span(at(10, 9, 0), at(10, 10, 0))}})
		assert.Empty(t, got)
	})

	t.Run("later occurrence of a recurring candidate conflicts", func(t *testing.T) {
		weekly := []Booking{{
			ID: "standup", RoomID: "room-r", Status: booking.StatusPending,
			Occurrences: []timeslot.Interval{span(at(17, 9, 0), at(17, 9, 30))},
		}}
		got := DetectConflicts(weekly, Candidate{RoomID: "room-r", Occurrences: []timeslot.Interval{
			span(at(10, 9, 0), at(10, 9, 30)),
			span(at(17, 9, 0), at(17, 9, 30)),
		}})
		require.Len(t, got, 1)
		assert.Equal(t, at(17, 9, 0), got[0].Candidate.Start)
	})
}

type finderStub struct {
	bookings []Booking
	err      error
	query    Query
}

func (f *finderStub) FindActiveBookings(ctx context.Context, query Query) ([]Booking, error) {
	f.query = query
	return f.bookings, f.err
}

func TestDetector_Check(t *testing.T) {
	t.Parallel()

	approved := Booking{ID: "b-1", RoomID: "room-r", Status: booking.StatusApproved, Occurrences: []timeslot.Interval{span(at(10, 9, 0), at(10, 10, 0))}}

	t.Run("basic conflict scenario", func(t *testing.T) {
		finder := &finderStub{bookings: []Booking{approved}}
		detector := NewDetector(finder)

		res, err := detector.Check(context.Background(), Candidate{RoomID: "room-r", Occurrences: []timeslot.Interval{span(at(10, 9, 30), at(10, 10, 30))}})
		require.NoError(t, err)
		assert.True(t, res.Conflict)
		assert.Equal(t, Query{RoomID: "room-r", From: at(10, 9, 30), To: at(10, 10, 30)}, finder.query)

		res, err = detector.Check(context.Background(), Candidate{RoomID: "room-r", Occurrences: []timeslot.Interval{span(at(10, 10, 0), at(10, 11, 0))}})
		require.NoError(t, err)
		assert.False(t, res.Conflict)
	})

	t.Run("fails closed when the query errors", func(t *testing.T) {
		detector := NewDetector(&finderStub{err: errors.New("store unreachable")})

		res, err := detector.Check(context.Background(), Candidate{RoomID: "room-r", Occurrences: []timeslot.Interval{span(at(11, 9, 0), at(11, 10, 0))}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrQueryFailed), "expected ErrQueryFailed, got %v", err)
		assert.Contains(t, err.Error(), "store unreachable")
		assert.True(t, res.Conflict)
	})

	t.Run("fails closed without a finder", func(t *testing.T) {
		res, err := NewDetector(nil).Check(context.Background(), Candidate{RoomID: "room-r", Occurrences: []timeslot.Interval{span(at(11, 9, 0), at(11, 10, 0))}})
		assert.True(t, errors.Is(err, ErrQueryFailed), "expected ErrQueryFailed, got %v", err)
		assert.True(t, res.Conflict)
	})

	t.Run("window spans every occurrence", func(t *testing.T) {
		finder := &finderStub{}
		_, err := NewDetector(finder).Check(context.Background(), Candidate{RoomID: "room-r", ExcludeID: "b-9", Occurrences: []timeslot.Interval{
			span(at(10, 9, 0), at(10, 10, 0)),
			span(at(24, 9, 0), at(24, 10, 0)),
		}})
		require.NoError(t, err)
		assert.Equal(t, at(10, 9, 0), finder.query.From)
		assert.Equal(t, at(24, 10, 0), finder.query.To)
		assert.Equal(t, "b-9", finder.query.ExcludeID)
	})
}
