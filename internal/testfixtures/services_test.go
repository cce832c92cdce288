package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/calendar"
	"github.com/example/roombooking/internal/notify"
	"github.com/example/roombooking/internal/realtime"
)

func TestServiceFactory_BookingRoundTrip(t *testing.T) {
	harness := NewSQLiteHarness(t)
	category := NewCategory(WithCategoryColor("#3366FF"))
	room := NewRoom(WithRoomCategory(category.ID))
	harness.SeedCategories(t, category)
	harness.SeedRooms(t, room)

	factory := NewServiceFactory(harness)
	bookings := factory.NewBookingService()
	ctx := context.Background()

	sub, err := harness.Hub.Subscribe(ctx, realtime.CollectionBookings)
	require.NoError(t, err)
	defer sub.Close()

	saved, err := bookings.Submit(ctx, application.SubmitParams{
		Principal: Member,
		Input:     NewBookingForm(room.ID, 15, "10:00", "11:00", WithFormTitle("Design review")),
	})
	require.NoError(t, err)
	assert.Equal(t, "booking-1", saved.ID)
	assert.Equal(t, booking.StatusPending, saved.Status)
	assert.True(t, saved.Start.Equal(At(15, 10, 0)))

	select {
	case event := <-sub.Events():
		assert.Equal(t, realtime.OpInsert, event.Op)
		assert.Equal(t, saved.ID, event.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change event after commit")
	}

	_, err = bookings.Submit(ctx, application.SubmitParams{
		Principal: Admin,
		Input:     NewBookingForm(room.ID, 15, "10:30", "12:00"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, application.ErrConflict), "expected conflict, got %v", err)

	notes := factory.Sink.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, notify.SeverityDefault, notes[0].Severity)
	assert.Equal(t, notify.SeverityDestructive, notes[1].Severity)

	grid, err := factory.NewCalendarService().Load(ctx, application.ViewRequest{
		View:   calendar.ViewDaily,
		Date:   Day(15),
		Filter: calendar.FilterAll,
	})
	require.NoError(t, err)
	require.Len(t, grid.Rows, 1)
	assert.Equal(t, "#3366FF", grid.Rows[0].Room.CategoryColor)

	var found bool
	for _, cell := range grid.Rows[0].Cells {
		if cell.Start.Equal(At(15, 10, 30)) {
			found = true
			assert.Equal(t, calendar.CellPending, cell.Status)
			assert.Equal(t, saved.ID, cell.BookingID)
			assert.Equal(t, calendar.ModeEdit, cell.Click().Mode)
		}
	}
	assert.True(t, found, "expected a 10:30 cell")
}

func TestServiceFactory_RoomService(t *testing.T) {
	harness := NewSQLiteHarness(t)
	factory := NewServiceFactory(harness)
	rooms := factory.NewRoomService()
	ctx := context.Background()

	room, err := rooms.SaveRoom(ctx, application.SaveRoomParams{
		Principal: Admin,
		Input:     application.RoomInput{Name: "Large", Enabled: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "catalog-1", room.ID)
	assert.True(t, room.CreatedAt.Equal(harness.Clock.Now()))

	_, err = rooms.SaveRoom(ctx, application.SaveRoomParams{
		Principal: Member,
		Input:     application.RoomInput{Name: "Small", Enabled: true},
	})
	assert.True(t, errors.Is(err, application.ErrUnauthorized), "expected unauthorized, got %v", err)
}
