package application

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/calendar"
	"github.com/example/roombooking/internal/persistence"
	"github.com/example/roombooking/internal/persistence/sqlite"
	"github.com/example/roombooking/internal/recurrence"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "bookings.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	store, err := sqlite.Open(dsn,
		sqlite.WithLocation(jst),
		sqlite.WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	require.NoError(t, sqlite.NewRoomRepository(store).CreateRoom(context.Background(), persistence.Room{
		ID: "room-r", Name: "R", Enabled: true, CreatedAt: testNow, UpdatedAt: testNow,
	}))
	return store
}

// newStoreBackedService builds a service the way a separate process would:
// its own room locks, sharing only the database.
func newStoreBackedService(store *sqlite.Store, id string) *BookingService {
	expander := NewExpander(recurrence.NewEngine(jst))
	return NewBookingService(BookingServiceDeps{
		Bookings:    sqlite.NewBookingRepository(store, expander.OverlapGuard()),
		Rooms:       sqlite.NewRoomRepository(store),
		Expander:    expander,
		IDGenerator: func() string { return id },
		Now:         func() time.Time { return testNow },
		Location:    jst,
	})
}

func TestBookingService_SQLiteConflicts(t *testing.T) {
	store := openTestStore(t)
	svc := newStoreBackedService(store, "b-series")
	ctx := context.Background()

	weekly := form("room-r", 10, "09:00", "10:00")
	weekly.RepeatKind = booking.RepeatWeekly
	until := day(31)
	weekly.RecurrenceEndDate = &until

	created, err := svc.Submit(ctx, SubmitParams{Principal: owner, Input: weekly})
	require.NoError(t, err)
	assert.Equal(t, "b-series", created.ID)

	later := newStoreBackedService(store, "b-later")
	_, err = later.Submit(ctx, SubmitParams{Principal: other, Input: form("room-r", 24, "09:30", "10:30")})
	assertIs(t, err, ErrConflict)

	_, err = later.Submit(ctx, SubmitParams{Principal: other, Input: form("room-r", 24, "10:00", "11:00")})
	require.NoError(t, err)

	cal := NewCalendarService(CalendarServiceDeps{
		Rooms:    sqlite.NewRoomRepository(store),
		Bookings: sqlite.NewBookingRepository(store, nil),
		Now:      func() time.Time { return testNow },
		Location: jst,
	})
	grid, err := cal.Load(ctx, ViewRequest{View: calendar.ViewDaily, Date: day(24)})
	require.NoError(t, err)
	assert.Equal(t, "b-series", cellAt(t, grid, "room-r", jan(24, 9, 0)).BookingID)
	assert.Equal(t, "b-later", cellAt(t, grid, "room-r", jan(24, 10, 0)).BookingID)
}

func TestBookingService_ConcurrentSubmissions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	const writers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
		failures  []error
	)
	for i := 0; i < writers; i++ {
		svc := newStoreBackedService(store, fmt.Sprintf("b-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, SubmitParams{Principal: owner, Input: form("room-r", 10, "09:00", "10:00")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, failures)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)

	stored, err := sqlite.NewBookingRepository(store, nil).ListBookings(ctx, persistence.BookingFilter{RoomID: "room-r"})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestBookingService_SQLiteLongSeries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	june := time.Date(2025, time.June, 2, 0, 0, 0, 0, jst)

	t.Run("series ending past the horizon is rejected", func(t *testing.T) {
		svc := newStoreBackedService(store, "b-long")
		daily := form("room-r", 10, "09:00", "10:00")
		daily.RepeatKind = booking.RepeatDaily
		until := time.Date(2025, time.December, 31, 0, 0, 0, 0, jst)
		daily.RecurrenceEndDate = &until

		_, err := svc.Submit(ctx, SubmitParams{Principal: owner, Input: daily})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "recurrence_end_date")

		_, err = sqlite.NewBookingRepository(store, nil).GetBooking(ctx, "b-long")
		assertIs(t, err, persistence.ErrNotFound)
	})

	t.Run("stored series keeps its room until its own end date", func(t *testing.T) {
		until := time.Date(2025, time.December, 31, 0, 0, 0, 0, jst)
		require.NoError(t, sqlite.NewBookingRepository(store, nil).CreateBooking(ctx, persistence.Booking{
			ID:                "b-legacy",
			RoomID:            "room-r",
			OwnerID:           owner.UserID,
			Title:             "Daily standup",
			Start:             jan(10, 9, 0),
			End:               jan(10, 10, 0),
			Status:            booking.StatusApproved,
			RepeatKind:        booking.RepeatDaily,
			RecurrenceEndDate: &until,
			CreatedAt:         testNow,
			UpdatedAt:         testNow,
		}))

		svc := newStoreBackedService(store, "b-one-off")
		oneOff := form("room-r", 10, "09:00", "10:00")
		oneOff.DateFrom, oneOff.DateTo = june, june
		_, err := svc.Submit(ctx, SubmitParams{Principal: other, Input: oneOff})
		assertIs(t, err, ErrConflict)

		cal := NewCalendarService(CalendarServiceDeps{
			Rooms:    sqlite.NewRoomRepository(store),
			Bookings: sqlite.NewBookingRepository(store, nil),
			Now:      func() time.Time { return testNow },
			Location: jst,
		})
		march := time.Date(2025, time.March, 3, 0, 0, 0, 0, jst)
		grid, err := cal.Load(ctx, ViewRequest{View: calendar.ViewDaily, Date: march})
		require.NoError(t, err)
		cell := cellAt(t, grid, "room-r", time.Date(2025, time.March, 3, 9, 0, 0, 0, jst))
		assert.Equal(t, "b-legacy", cell.BookingID)
		assert.Equal(t, calendar.CellBooked, cell.Status)
	})
}

func TestBookingService_SQLiteCustomRuleBaseInterval(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	custom := form("room-r", 16, "09:00", "10:00")
	custom.RepeatKind = booking.RepeatCustom
	custom.RecurrenceRule = "FREQ=WEEKLY;BYDAY=MO"
	until := day(16)
	custom.RecurrenceEndDate = &until

	_, err := newStoreBackedService(store, "b-custom").Submit(ctx, SubmitParams{Principal: owner, Input: custom})
	require.NoError(t, err)

	_, err = newStoreBackedService(store, "b-same").Submit(ctx, SubmitParams{Principal: other, Input: form("room-r", 16, "09:00", "10:00")})
	assertIs(t, err, ErrConflict)

	stored, err := sqlite.NewBookingRepository(store, nil).ListBookings(ctx, persistence.BookingFilter{RoomID: "room-r"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "b-custom", stored[0].ID)
}
