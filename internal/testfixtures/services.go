package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/notify"
	"github.com/example/roombooking/internal/timeslot"
)

// RecordingSink captures notifications for assertions.
type RecordingSink struct {
	mu            sync.Mutex
	notifications []notify.Notification
}

// Notify implements notify.Sink.
func (s *RecordingSink) Notify(_ context.Context, n notify.Notification) {
	s.mu.Lock()
	s.notifications = append(s.notifications, n)
	s.mu.Unlock()
}

// Notifications returns a copy of everything received so far.
func (s *RecordingSink) Notifications() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification(nil), s.notifications...)
}

// ServiceFactory builds application services over a SQLiteHarness with
// deterministic identifiers and the harness clock. Bookings are numbered
// "booking-N"; rooms and categories share the "catalog-N" series.
type ServiceFactory struct {
	Harness *SQLiteHarness
	IDs     *Sequence
	Sink    *RecordingSink
	Logger  *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a factory over harness.
func NewServiceFactory(harness *SQLiteHarness, opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Harness: harness,
		IDs:     NewSequence(),
		Sink:    &RecordingSink{},
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.IDs == nil {
		factory.IDs = NewSequence()
	}
	if factory.Sink == nil {
		factory.Sink = &RecordingSink{}
	}
	return factory
}

// WithSequence shares seq between factories so identifiers never repeat.
func WithSequence(seq *Sequence) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDs = seq
	}
}

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

func (f *ServiceFactory) now() func() time.Time {
	return f.Harness.Clock.NowFunc()
}

// NewBookingService builds a booking service over the harness repositories.
func (f *ServiceFactory) NewBookingService() *application.BookingService {
	return application.NewBookingService(application.BookingServiceDeps{
		Bookings:    f.Harness.Bookings,
		Rooms:       f.Harness.Rooms,
		Expander:    f.Harness.Expander,
		Sink:        f.Sink,
		IDGenerator: f.IDs.For("booking"),
		Now:         f.now(),
		Location:    Location(),
		Logger:      f.Logger,
	})
}

// NewCalendarService builds a calendar loader with the default 08:00-20:00
// half-hour rows.
func (f *ServiceFactory) NewCalendarService() *application.CalendarService {
	return application.NewCalendarService(application.CalendarServiceDeps{
		Rooms:      f.Harness.Rooms,
		Categories: f.Harness.Categories,
		Bookings:   f.Harness.Bookings,
		Expander:   f.Harness.Expander,
		Sink:       f.Sink,
		Slots:      timeslot.Slots(8, 20, 30),
		Now:        f.now(),
		Location:   Location(),
		Logger:     f.Logger,
	})
}

// NewRoomService builds a room catalog service.
func (f *ServiceFactory) NewRoomService() *application.RoomService {
	return application.NewRoomServiceWithLogger(
		f.Harness.Rooms,
		f.Harness.Categories,
		f.IDs.For("catalog"),
		f.now(),
		f.Logger,
	)
}
