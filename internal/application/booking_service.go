package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/notify"
	"github.com/example/roombooking/internal/persistence"
	"github.com/example/roombooking/internal/recurrence"
	"github.com/example/roombooking/internal/scheduler"
	"github.com/example/roombooking/internal/timeslot"
)

// MaxTitleLength bounds booking titles, counted in characters.
const MaxTitleLength = 100

// ConflictChecker decides whether a candidate booking may be written.
type ConflictChecker interface {
	Check(ctx context.Context, candidate scheduler.Candidate) (scheduler.Result, error)
}

// BookingServiceDeps lists the collaborators of a BookingService. Only
// Bookings and Rooms are required.
type BookingServiceDeps struct {
	Bookings    persistence.BookingRepository
	Rooms       persistence.RoomRepository
	Detector    ConflictChecker
	Expander    *Expander
	Sink        notify.Sink
	IDGenerator func() string
	Now         func() time.Time
	Location    *time.Location
	Logger      *slog.Logger
}

// BookingService is the single write path for bookings.
type BookingService struct {
	bookings    persistence.BookingRepository
	rooms       persistence.RoomRepository
	detector    ConflictChecker
	expander    *Expander
	sink        notify.Sink
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
	locks       roomLocks
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(deps BookingServiceDeps) *BookingService {
	svc := &BookingService{
		bookings:    deps.Bookings,
		rooms:       deps.Rooms,
		detector:    deps.Detector,
		expander:    deps.Expander,
		sink:        deps.Sink,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		location:    deps.Location,
		logger:      defaultLogger(deps.Logger),
	}
	if svc.expander == nil {
		svc.expander = NewExpander(nil)
	}
	if svc.detector == nil {
		svc.detector = scheduler.NewDetector(NewBookingFinder(deps.Bookings, svc.expander))
	}
	if svc.sink == nil {
		svc.sink = notify.Discard{}
	}
	if svc.idGenerator == nil {
		svc.idGenerator = uuid.NewString
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.location == nil {
		svc.location = svc.expander.engine.Location()
	}
	return svc
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// Submit validates the form, checks for conflicts and creates the booking,
// or edits it when params.BookingID is set. Nothing is written when
// validation fails or a conflict is found.
func (s *BookingService) Submit(ctx context.Context, params SubmitParams) (result persistence.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	editing := params.BookingID != ""
	operation := "CreateBooking"
	if editing {
		operation = "UpdateBooking"
	}
	attrs := []any{"principal_id", params.Principal.UserID, "room_id", params.Input.RoomID}
	if editing {
		attrs = append(attrs, "booking_id", params.BookingID)
	}
	logger := s.loggerWith(ctx, operation, attrs...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit booking", "error", err, "error_kind", ErrorKind(err))
			s.notifyFailure(ctx, params.Principal, err)
			return
		}
		if !editing {
			logger = logger.With("booking_id", result.ID)
		}
		logger.InfoContext(ctx, "booking submitted", "status", string(result.Status))
		title := "Booking submitted"
		if editing {
			title = "Booking updated"
		}
		s.notifySuccess(ctx, params.Principal, title, result)
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.bookings == nil || s.rooms == nil {
		err = errors.Mark(errors.New("booking repositories not configured"), ErrOperationFailed)
		return
	}

	var existing persistence.Booking
	if editing {
		existing, err = s.bookings.GetBooking(ctx, params.BookingID)
		if err != nil {
			err = mapRepoError(err, "load booking")
			return
		}
		if err = authorizeEdit(params.Principal, existing); err != nil {
			return
		}
	}

	form, vErr, lookupErr := s.validateInput(ctx, params.Input)
	if lookupErr != nil {
		err = lookupErr
		return
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	candidate := persistence.Booking{
		RoomID:            form.roomID,
		OwnerID:           params.Principal.UserID,
		Title:             form.title,
		Start:             form.start,
		End:               form.end,
		Status:            booking.StatusPending,
		RepeatKind:        form.repeat,
		RecurrenceRule:    form.rule,
		RecurrenceEndDate: form.until,
		AllowGuests:       params.Input.AllowGuests,
		GuestEmails:       form.guests,
		Remarks:           strings.TrimSpace(params.Input.Remarks),
		CreatedAt:         s.now(),
	}
	candidate.UpdatedAt = candidate.CreatedAt
	if editing {
		candidate.ID = existing.ID
		candidate.OwnerID = existing.OwnerID
		candidate.Status = existing.Status
		candidate.CreatedAt = existing.CreatedAt
	} else {
		candidate.ID = s.idGenerator()
	}

	occurrences, expandErr := s.expander.Occurrences(candidate, nil)
	if expandErr != nil {
		err = errors.Mark(expandErr, ErrOperationFailed)
		return
	}
	if len(occurrences) == 0 {
		vErr.add("recurrence_rule", "recurrence produces no occurrences")
		err = vErr
		return
	}

	unlock := s.locks.lock(candidate.RoomID)
	defer unlock()

	check, checkErr := s.detector.Check(ctx, scheduler.Candidate{
		RoomID:      candidate.RoomID,
		ExcludeID:   params.BookingID,
		Occurrences: occurrences,
	})
	if checkErr != nil {
		err = errors.Mark(errors.Wrap(checkErr, "conflict check unavailable"), ErrConflict)
		return
	}
	if check.Conflict {
		first := check.Conflicts[0]
		err = errors.Wrapf(ErrConflict, "overlaps booking %s at %s", first.WithBookingID,
			first.Existing.Start.In(s.location).Format(time.RFC3339))
		return
	}

	if editing {
		err = s.bookings.UpdateBooking(ctx, candidate)
	} else {
		err = s.bookings.CreateBooking(ctx, candidate)
	}
	if err != nil {
		err = mapRepoError(err, "save booking")
		return
	}

	result = candidate
	return
}

// Get returns a booking by id.
func (s *BookingService) Get(ctx context.Context, principal Principal, id string) (persistence.Booking, error) {
	if s == nil {
		return persistence.Booking{}, fmt.Errorf("BookingService is nil")
	}
	if principal.UserID == "" {
		return persistence.Booking{}, ErrUnauthorized
	}
	if s.bookings == nil {
		return persistence.Booking{}, errors.Mark(errors.New("booking repository not configured"), ErrOperationFailed)
	}
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		err = mapRepoError(err, "load booking")
		s.loggerWith(ctx, "GetBooking", "booking_id", id).
			ErrorContext(ctx, "failed to load booking", "error", err, "error_kind", ErrorKind(err))
		return persistence.Booking{}, err
	}
	return b, nil
}

// Cancel cancels a pending or approved booking. Owners may cancel their own
// bookings; administrators may cancel any.
func (s *BookingService) Cancel(ctx context.Context, params TransitionParams) (persistence.Booking, error) {
	return s.transition(ctx, "CancelBooking", params, booking.StatusCancelled, false)
}

// Approve confirms a pending booking. Administrators only.
func (s *BookingService) Approve(ctx context.Context, params TransitionParams) (persistence.Booking, error) {
	return s.transition(ctx, "ApproveBooking", params, booking.StatusApproved, true)
}

// Reject declines a pending booking. Administrators only.
func (s *BookingService) Reject(ctx context.Context, params TransitionParams) (persistence.Booking, error) {
	return s.transition(ctx, "RejectBooking", params, booking.StatusRejected, true)
}

func (s *BookingService) transition(ctx context.Context, operation string, params TransitionParams, to booking.Status, adminOnly bool) (result persistence.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
		"to_status", string(to),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change booking status", "error", err, "error_kind", ErrorKind(err))
			s.notifyFailure(ctx, params.Principal, err)
			return
		}
		logger.InfoContext(ctx, "booking status changed")
		s.notifySuccess(ctx, params.Principal, "Booking "+string(to), result)
	}()

	if params.Principal.UserID == "" || (adminOnly && !params.Principal.IsAdmin) {
		err = ErrUnauthorized
		return
	}
	if s.bookings == nil {
		err = errors.Mark(errors.New("booking repository not configured"), ErrOperationFailed)
		return
	}

	var existing persistence.Booking
	existing, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapRepoError(err, "load booking")
		return
	}
	if !params.Principal.IsAdmin && existing.OwnerID != params.Principal.UserID {
		err = ErrUnauthorized
		return
	}
	if !booking.CanTransition(existing.Status, to) {
		err = errors.Wrapf(ErrInvalidTransition, "%s to %s", existing.Status, to)
		return
	}

	unlock := s.locks.lock(existing.RoomID)
	defer unlock()

	updated := existing
	updated.Status = to
	updated.UpdatedAt = s.now()
	if err = s.bookings.UpdateBooking(ctx, updated); err != nil {
		err = mapRepoError(err, "save booking status")
		return
	}
	result = updated
	return
}

func authorizeEdit(principal Principal, existing persistence.Booking) error {
	if existing.Status.IsTerminal() {
		return errors.Wrapf(ErrInvalidTransition, "%s bookings cannot be edited", existing.Status)
	}
	if principal.IsAdmin {
		return nil
	}
	if existing.OwnerID != principal.UserID || existing.Status != booking.StatusPending {
		return ErrUnauthorized
	}
	return nil
}

// bookingForm is the normalised, validated form.
type bookingForm struct {
	roomID string
	title  string
	start  time.Time
	end    time.Time
	repeat booking.RepeatKind
	rule   *string
	until  *time.Time
	guests []string
}

var emailValidator = validator.New()

// validateInput accumulates every field error. The returned error is set only
// when the room lookup itself failed.
func (s *BookingService) validateInput(ctx context.Context, input BookingInput) (bookingForm, *ValidationError, error) {
	vErr := &ValidationError{}
	form := bookingForm{
		roomID: strings.TrimSpace(input.RoomID),
		title:  strings.TrimSpace(input.Title),
	}

	switch {
	case form.title == "":
		vErr.add("title", "title is required")
	case utf8.RuneCountInString(form.title) > MaxTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}

	if form.roomID == "" {
		vErr.add("room_id", "room is required")
	} else {
		room, err := s.rooms.GetRoom(ctx, form.roomID)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			vErr.add("room_id", "room does not exist")
		case err != nil:
			return form, nil, mapRepoError(err, "load room")
		case !room.Enabled:
			vErr.add("room_id", "room is not available for booking")
		}
	}

	datesValid := true
	if input.DateFrom.IsZero() || input.DateTo.IsZero() {
		vErr.add("date_range", "start and end dates are required")
		datesValid = false
	} else if dateOf(input.DateTo, s.location).Before(dateOf(input.DateFrom, s.location)) {
		vErr.add("date_range", "end date must not be before start date")
		datesValid = false
	}

	startOffset, startErr := timeslot.Parse(input.StartTime)
	endOffset, endErr := timeslot.Parse(input.EndTime)
	if startErr != nil || endErr != nil {
		vErr.add("time", "start and end times must be HH:MM")
	} else if datesValid {
		form.start = atTimeOfDay(dateOf(input.DateFrom, s.location), startOffset)
		form.end = atTimeOfDay(dateOf(input.DateTo, s.location), endOffset)
		if !form.end.After(form.start) {
			vErr.add("time", "end time must be after start time")
		}
	}

	repeat, err := booking.ParseRepeatKind(string(input.RepeatKind))
	if err != nil {
		vErr.add("repeat_kind", "unknown repeat kind")
	}
	form.repeat = repeat

	if repeat == booking.RepeatCustom {
		rule := strings.TrimSpace(input.RecurrenceRule)
		if rule == "" {
			vErr.add("recurrence_rule", "recurrence rule is required for custom repetition")
		} else if err := recurrence.ValidateRule(rule); err != nil {
			vErr.add("recurrence_rule", "recurrence rule is invalid")
		} else {
			form.rule = &rule
		}
	}

	if repeat.Repeats() {
		switch {
		case input.RecurrenceEndDate == nil || input.RecurrenceEndDate.IsZero():
			vErr.add("recurrence_end_date", "recurrence end date is required")
		case datesValid && dateOf(*input.RecurrenceEndDate, s.location).Before(dateOf(input.DateFrom, s.location)):
			vErr.add("recurrence_end_date", "recurrence end date must not be before the start date")
		case !form.start.IsZero() && s.beyondHorizon(form.start, dateOf(*input.RecurrenceEndDate, s.location)):
			last := s.expander.engine.LastUntil(form.start).Format(time.DateOnly)
			vErr.add("recurrence_end_date", "recurrence end date must not be after "+last)
		default:
			until := dateOf(*input.RecurrenceEndDate, s.location)
			form.until = &until
		}
	}

	if input.AllowGuests {
		guests, invalid := parseGuestEmails(input.GuestEmails)
		if len(invalid) > 0 {
			vErr.add("guest_emails", "invalid email addresses: "+strings.Join(invalid, ", "))
		}
		form.guests = guests
	}

	return form, vErr, nil
}

func (s *BookingService) beyondHorizon(start, until time.Time) bool {
	err := s.expander.engine.CheckHorizon(recurrence.Series{
		Frequency: recurrence.FrequencyDaily,
		Start:     start,
		Until:     &until,
	})
	return errors.Is(err, recurrence.ErrBeyondHorizon)
}

// parseGuestEmails splits a comma-separated list and returns the valid
// addresses and every invalid entry.
func parseGuestEmails(raw string) (valid, invalid []string) {
	for _, part := range strings.Split(raw, ",") {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		if err := emailValidator.Var(addr, "email"); err != nil {
			invalid = append(invalid, addr)
			continue
		}
		valid = append(valid, addr)
	}
	return valid, invalid
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func atTimeOfDay(day time.Time, offset time.Duration) time.Time {
	minutes := int(offset / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

func (s *BookingService) notifySuccess(ctx context.Context, principal Principal, title string, b persistence.Booking) {
	s.sink.Notify(ctx, notify.Notification{
		Title:       title,
		Description: b.Title,
		Severity:    notify.SeverityDefault,
		UserID:      principal.UserID,
		At:          s.now(),
	})
}

func (s *BookingService) notifyFailure(ctx context.Context, principal Principal, err error) {
	n := notify.Notification{
		Severity: notify.SeverityDestructive,
		UserID:   principal.UserID,
		At:       s.now(),
	}
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		n.Title = "Please correct the booking form"
		n.Description = vErr.Error()
	case errors.Is(err, ErrConflict):
		n.Title = "The room is already booked for this time"
		n.Description = err.Error()
	case errors.Is(err, ErrUnauthorized):
		n.Title = "You are not allowed to change this booking"
	case errors.Is(err, ErrNotFound):
		n.Title = "Booking not found"
	case errors.Is(err, ErrInvalidTransition):
		n.Title = "This booking can no longer be changed"
		n.Description = err.Error()
	default:
		n.Title = "Failed to save the booking"
		n.Description = "Please try again."
	}
	s.sink.Notify(ctx, n)
}

// roomLocks serialises writes per room within the process.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func (l *roomLocks) lock(roomID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*roomLock)
	}
	rl, ok := l.locks[roomID]
	if !ok {
		rl = &roomLock{}
		l.locks[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}
