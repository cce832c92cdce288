package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/persistence"
	"github.com/example/roombooking/internal/persistence/sqlite"
	"github.com/example/roombooking/internal/realtime"
	"github.com/example/roombooking/internal/recurrence"
)

// SQLiteDSN returns a DSN for a fresh database file in a temporary directory,
// with the pragmas and immediate write transactions production uses.
func SQLiteDSN(tb testing.TB) string {
	tb.Helper()
	return "file:" + filepath.Join(tb.TempDir(), "roombooking.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// SQLiteHarness provides repository access backed by a temporary SQLite
// database. Committed writes are published to Hub.
type SQLiteHarness struct {
	Store      *sqlite.Store
	Bookings   *sqlite.BookingRepository
	Rooms      *sqlite.RoomRepository
	Categories *sqlite.CategoryRepository
	Expander   *application.Expander
	Hub        *realtime.Hub
	Clock      *Clock

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database in a temporary directory.
// Close is registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	clock := NewClock(ReferenceTime())
	hub := realtime.NewHub()

	store, err := sqlite.Open(SQLiteDSN(tb),
		sqlite.WithLocation(Location()),
		sqlite.WithClock(clock.NowFunc()),
		sqlite.WithPublisher(hub),
	)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	expander := application.NewExpander(recurrence.NewEngine(Location()))
	harness := &SQLiteHarness{
		Store:      store,
		Bookings:   sqlite.NewBookingRepository(store, expander.OverlapGuard()),
		Rooms:      sqlite.NewRoomRepository(store),
		Categories: sqlite.NewCategoryRepository(store),
		Expander:   expander,
		Hub:        hub,
		Clock:      clock,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedCategories inserts categories, failing the test on error.
func (h *SQLiteHarness) SeedCategories(tb testing.TB, categories ...persistence.Category) {
	tb.Helper()
	for _, c := range categories {
		if err := h.Categories.CreateCategory(context.Background(), c); err != nil {
			tb.Fatalf("seed category %s: %v", c.ID, err)
		}
	}
}

// SeedRooms inserts rooms, failing the test on error.
func (h *SQLiteHarness) SeedRooms(tb testing.TB, rooms ...persistence.Room) {
	tb.Helper()
	for _, r := range rooms {
		if err := h.Rooms.CreateRoom(context.Background(), r); err != nil {
			tb.Fatalf("seed room %s: %v", r.ID, err)
		}
	}
}

// SeedBookings inserts bookings, failing the test on error.
func (h *SQLiteHarness) SeedBookings(tb testing.TB, bookings ...persistence.Booking) {
	tb.Helper()
	for _, b := range bookings {
		if err := h.Bookings.CreateBooking(context.Background(), b); err != nil {
			tb.Fatalf("seed booking %s: %v", b.ID, err)
		}
	}
}
