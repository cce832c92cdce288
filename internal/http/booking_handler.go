package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/persistence"
)

const dateLayout = "2006-01-02"

type bookingService interface {
	Submit(ctx context.Context, params application.SubmitParams) (persistence.Booking, error)
	Get(ctx context.Context, principal application.Principal, id string) (persistence.Booking, error)
	Cancel(ctx context.Context, params application.TransitionParams) (persistence.Booking, error)
	Approve(ctx context.Context, params application.TransitionParams) (persistence.Booking, error)
	Reject(ctx context.Context, params application.TransitionParams) (persistence.Booking, error)
}

// BookingHandler serves the booking form submission and lifecycle endpoints.
type BookingHandler struct {
	service   bookingService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler constructs a handler. Form dates are read in loc.
func NewBookingHandler(service bookingService, loc *time.Location, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.Local
	}
	return &BookingHandler{service: service, location: loc, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Create handles POST /bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "Create", "")
}

// Update handles PUT /bookings/{id}.
func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}
	h.submit(w, r, "Update", bookingID)
}

func (h *BookingHandler) submit(w http.ResponseWriter, r *http.Request, operation, bookingID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), operation, "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)
	if bookingID != "" {
		logger = logger.With("booking_id", bookingID)
	}

	saved, err := h.service.Submit(r.Context(), application.SubmitParams{
		Principal: principal,
		BookingID: bookingID,
		Input:     req.toInput(h.location),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking submission rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if bookingID == "" {
		status = http.StatusCreated
		logger = logger.With("booking_id", saved.ID)
	}
	logger.InfoContext(r.Context(), "booking saved")
	h.responder.writeJSON(r.Context(), w, status, bookingResponse{Booking: toBookingDTO(saved, h.location)})
}

// Get handles GET /bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	b, err := h.service.Get(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(b, h.location)})
}

// Transition handles POST /bookings/{id}/{cancel|approve|reject}.
func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request, action string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	var apply func(context.Context, application.TransitionParams) (persistence.Booking, error)
	switch action {
	case "cancel":
		apply = h.service.Cancel
	case "approve":
		apply = h.service.Approve
	case "reject":
		apply = h.service.Reject
	default:
		http.NotFound(w, r)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Transition", "principal_id", principal.UserID, "booking_id", bookingID, "action", action)

	updated, err := apply(r.Context(), application.TransitionParams{Principal: principal, BookingID: bookingID})
	if err != nil {
		logger.WarnContext(r.Context(), "booking transition rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", string(updated.Status)).InfoContext(r.Context(), "booking transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(updated, h.location)})
}

type bookingRequest struct {
	RoomID            string `json:"room_id"`
	Title             string `json:"title"`
	DateFrom          string `json:"date_from"`
	DateTo            string `json:"date_to"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	RepeatKind        string `json:"repeat_kind"`
	RecurrenceRule    string `json:"recurrence_rule"`
	RecurrenceEndDate string `json:"recurrence_end_date"`
	AllowGuests       bool   `json:"allow_guests"`
	GuestEmails       string `json:"guest_emails"`
	Remarks           string `json:"remarks"`
}

// toInput parses the form dates in loc. Unparseable dates stay zero so the
// service reports them as field errors.
func (r bookingRequest) toInput(loc *time.Location) application.BookingInput {
	input := application.BookingInput{
		RoomID:         strings.TrimSpace(r.RoomID),
		Title:          r.Title,
		DateFrom:       parseDate(r.DateFrom, loc),
		DateTo:         parseDate(r.DateTo, loc),
		StartTime:      strings.TrimSpace(r.StartTime),
		EndTime:        strings.TrimSpace(r.EndTime),
		RepeatKind:     booking.RepeatKind(strings.TrimSpace(r.RepeatKind)),
		RecurrenceRule: r.RecurrenceRule,
		AllowGuests:    r.AllowGuests,
		GuestEmails:    r.GuestEmails,
		Remarks:        r.Remarks,
	}
	if strings.TrimSpace(r.RecurrenceEndDate) != "" {
		until := parseDate(r.RecurrenceEndDate, loc)
		input.RecurrenceEndDate = &until
	}
	return input
}

func parseDate(value string, loc *time.Location) time.Time {
	ts, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}
	}
	return ts
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type bookingDTO struct {
	ID                string   `json:"id"`
	RoomID            string   `json:"room_id"`
	OwnerID           string   `json:"owner_id"`
	Title             string   `json:"title"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
	Status            string   `json:"status"`
	RepeatKind        string   `json:"repeat_kind"`
	RecurrenceRule    *string  `json:"recurrence_rule,omitempty"`
	RecurrenceEndDate string   `json:"recurrence_end_date,omitempty"`
	AllowGuests       bool     `json:"allow_guests"`
	GuestEmails       []string `json:"guest_emails,omitempty"`
	Remarks           string   `json:"remarks,omitempty"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// toBookingDTO renders timestamps with the calendar offset.
func toBookingDTO(b persistence.Booking, loc *time.Location) bookingDTO {
	dto := bookingDTO{
		ID:             b.ID,
		RoomID:         b.RoomID,
		OwnerID:        b.OwnerID,
		Title:          b.Title,
		Start:          b.Start.In(loc).Format(time.RFC3339),
		End:            b.End.In(loc).Format(time.RFC3339),
		Status:         string(b.Status),
		RepeatKind:     string(b.RepeatKind),
		RecurrenceRule: b.RecurrenceRule,
		AllowGuests:    b.AllowGuests,
		GuestEmails:    b.GuestEmails,
		Remarks:        b.Remarks,
		CreatedAt:      b.CreatedAt.In(loc).Format(time.RFC3339),
		UpdatedAt:      b.UpdatedAt.In(loc).Format(time.RFC3339),
	}
	if b.RecurrenceEndDate != nil {
		dto.RecurrenceEndDate = b.RecurrenceEndDate.In(loc).Format(dateLayout)
	}
	return dto
}
