package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/example/roombooking/internal/calendar"
	"github.com/example/roombooking/internal/notify"
	"github.com/example/roombooking/internal/persistence"
	"github.com/example/roombooking/internal/timeslot"
)

// CalendarServiceDeps lists the collaborators of a CalendarService.
type CalendarServiceDeps struct {
	Rooms      persistence.RoomRepository
	Categories persistence.CategoryRepository
	Bookings   persistence.BookingRepository
	Expander   *Expander
	Sink       notify.Sink
	// Slots are the daily view rows.
	Slots    []timeslot.Slot
	Now      func() time.Time
	Location *time.Location
	Logger   *slog.Logger
}

// CalendarService loads the data of a calendar view and builds its grid.
type CalendarService struct {
	rooms      persistence.RoomRepository
	categories persistence.CategoryRepository
	bookings   persistence.BookingRepository
	expander   *Expander
	sink       notify.Sink
	slots      []timeslot.Slot
	now        func() time.Time
	location   *time.Location
	logger     *slog.Logger
}

// NewCalendarService wires dependencies for calendar views.
func NewCalendarService(deps CalendarServiceDeps) *CalendarService {
	svc := &CalendarService{
		rooms:      deps.Rooms,
		categories: deps.Categories,
		bookings:   deps.Bookings,
		expander:   deps.Expander,
		sink:       deps.Sink,
		slots:      deps.Slots,
		now:        deps.Now,
		location:   deps.Location,
		logger:     defaultLogger(deps.Logger),
	}
	if svc.expander == nil {
		svc.expander = NewExpander(nil)
	}
	if svc.sink == nil {
		svc.sink = notify.Discard{}
	}
	if svc.slots == nil {
		svc.slots = timeslot.Slots(8, 20, 30)
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.location == nil {
		svc.location = svc.expander.engine.Location()
	}
	return svc
}

// Location returns the calendar timezone.
func (s *CalendarService) Location() *time.Location {
	return s.location
}

// Load builds the grid for req. When the data cannot be fetched the failure
// is reported to the notification sink and an empty grid for the window is
// returned along with the error.
func (s *CalendarService) Load(ctx context.Context, req ViewRequest) (calendar.Grid, error) {
	if s == nil {
		return calendar.Grid{}, fmt.Errorf("CalendarService is nil")
	}
	grid, err := s.Snapshot(ctx, req)
	if err != nil && !errors.Is(err, calendar.ErrUnknownView) {
		s.sink.Notify(ctx, notify.Notification{
			Title:       "Failed to load the calendar",
			Description: "Showing no bookings until the next refresh.",
			Severity:    notify.SeverityDestructive,
			At:          s.now(),
		})
	}
	return grid, err
}

// Snapshot builds the grid for req without reporting failures. It is the
// fetch function of a realtime view.
func (s *CalendarService) Snapshot(ctx context.Context, req ViewRequest) (grid calendar.Grid, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarService is nil")
		return
	}

	day := dateOf(req.Date, s.location)
	logger := s.loggerWith(ctx, "LoadCalendar",
		"view", string(req.View),
		"date", day.Format("2006-01-02"),
		"filter", string(req.Filter),
	)

	window, err := calendar.Window(req.View, day)
	if err != nil {
		return
	}
	grid = calendar.Grid{View: req.View, Start: window.Start, End: window.End}

	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to load calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rooms", len(grid.Rows)).DebugContext(ctx, "calendar loaded")
	}()

	if s.rooms == nil || s.bookings == nil {
		err = errors.Mark(errors.New("calendar repositories not configured"), ErrOperationFailed)
		return
	}

	rooms, err := s.loadRooms(ctx)
	if err != nil {
		return
	}

	stored, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		StartsBefore: &window.End,
		EndsAfter:    &window.Start,
	})
	if err != nil {
		err = mapRepoError(err, "list bookings")
		return
	}
	entries, err := s.entries(stored, window)
	if err != nil {
		return
	}

	in := calendar.Input{Rooms: rooms, Entries: entries, Now: s.now(), Filter: req.Filter}
	switch req.View {
	case calendar.ViewDaily:
		grid = calendar.BuildDaily(in, day, s.slots)
	case calendar.ViewWeekly:
		grid = calendar.BuildWeekly(in, day)
	case calendar.ViewMonthly:
		grid = calendar.BuildMonthly(in, day)
	}
	return
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarService", operation, attrs...)
}

func (s *CalendarService) loadRooms(ctx context.Context) ([]calendar.Room, error) {
	stored, err := s.rooms.ListRooms(ctx, persistence.RoomFilter{EnabledOnly: true})
	if err != nil {
		return nil, mapRepoError(err, "list rooms")
	}

	categories := map[string]persistence.Category{}
	if s.categories != nil {
		list, err := s.categories.ListCategories(ctx)
		if err != nil {
			return nil, mapRepoError(err, "list categories")
		}
		for _, c := range list {
			categories[c.ID] = c
		}
	}

	rooms := make([]calendar.Room, 0, len(stored))
	for _, r := range stored {
		room := calendar.Room{ID: r.ID, Name: r.Name}
		if r.CategoryID != nil {
			room.CategoryID = *r.CategoryID
			if c, ok := categories[*r.CategoryID]; ok {
				room.CategoryName = c.Name
				if c.Color != nil {
					room.CategoryColor = *c.Color
				}
			}
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// entries expands stored bookings inside the window. Active bookings come
// first so they win the scan over cancelled or rejected ones in the same cell.
func (s *CalendarService) entries(stored []persistence.Booking, window timeslot.Interval) ([]calendar.Entry, error) {
	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].Status.IsActive() && !stored[j].Status.IsActive()
	})

	var entries []calendar.Entry
	for _, b := range stored {
		occurrences, err := s.expander.Occurrences(b, &window)
		if err != nil {
			return nil, errors.Mark(err, ErrOperationFailed)
		}
		for _, occ := range occurrences {
			entries = append(entries, calendar.Entry{
				BookingID: b.ID,
				RoomID:    b.RoomID,
				OwnerID:   b.OwnerID,
				Title:     b.Title,
				Status:    b.Status,
				Start:     occ.Start,
				End:       occ.End,
			})
		}
	}
	return entries, nil
}
