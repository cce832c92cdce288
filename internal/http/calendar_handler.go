package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/calendar"
	"github.com/example/roombooking/internal/notify"
	"github.com/example/roombooking/internal/realtime"
	"github.com/example/roombooking/internal/timeslot"
)

const defaultKeepAlive = 25 * time.Second

type calendarService interface {
	Load(ctx context.Context, req application.ViewRequest) (calendar.Grid, error)
	Snapshot(ctx context.Context, req application.ViewRequest) (calendar.Grid, error)
	Location() *time.Location
}

// SlotConfig is the default daily slot range served by /slots.
type SlotConfig struct {
	StartHour       int
	EndHour         int
	IntervalMinutes int
}

// CalendarHandlerConfig lists the collaborators of a CalendarHandler.
type CalendarHandlerConfig struct {
	Service calendarService
	// Feed drives the event stream. Streams are disabled when nil.
	Feed      realtime.Feed
	Sink      notify.Sink
	Slots     SlotConfig
	Now       func() time.Time
	KeepAlive time.Duration
	Logger    *slog.Logger
}

// CalendarHandler serves calendar grids, their realtime stream and the slot
// labels.
type CalendarHandler struct {
	service   calendarService
	feed      realtime.Feed
	sink      notify.Sink
	slots     SlotConfig
	now       func() time.Time
	keepAlive time.Duration
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(cfg CalendarHandlerConfig) *CalendarHandler {
	base := defaultLogger(cfg.Logger)
	h := &CalendarHandler{
		service:   cfg.Service,
		feed:      cfg.Feed,
		sink:      cfg.Sink,
		slots:     cfg.Slots,
		now:       cfg.Now,
		keepAlive: cfg.KeepAlive,
		responder: newResponder(base),
		logger:    base,
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.keepAlive <= 0 {
		h.keepAlive = defaultKeepAlive
	}
	if h.slots.IntervalMinutes <= 0 {
		h.slots = SlotConfig{StartHour: 8, EndHour: 20, IntervalMinutes: 30}
	}
	return h
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// View handles GET /calendar/{daily|weekly|monthly}.
func (h *CalendarHandler) View(w http.ResponseWriter, r *http.Request, view string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	req, err := h.viewRequest(view, r.URL.Query())
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	grid, err := h.service.Load(r.Context(), req)
	if err != nil {
		h.log(r.Context(), "View", "view", view).ErrorContext(r.Context(), "calendar load failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGridDTO(grid, h.service.Location()))
}

// Stream handles GET /calendar/stream. It sends a grid event with the
// initial snapshot and another after every change to bookings, rooms or
// categories until the client disconnects.
func (h *CalendarHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.feed == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errStreamingAbsent)
		return
	}

	values := r.URL.Query()
	req, err := h.viewRequest(values.Get("view"), values)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := h.log(ctx, "Stream", "view", string(req.View), "date", req.Date.Format(dateLayout))
	syncer := realtime.NewSynchronizer(h.feed, func(ctx context.Context) (calendar.Grid, error) {
		return h.service.Snapshot(ctx, req)
	}, h.sink, logger)

	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx) }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.InfoContext(ctx, "calendar stream opened")
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	loc := h.service.Location()
	updates := syncer.Updates()
	for {
		select {
		case grid, ok := <-updates:
			if !ok {
				runErr := <-done
				if runErr != nil {
					logger.WarnContext(ctx, "calendar stream ended", "error", runErr)
					_ = writeEvent(w, "error", errorResponse{Message: "リアルタイム更新が停止しました。再読み込みしてください。"})
					flusher.Flush()
				}
				return
			}
			if err := writeEvent(w, "grid", toGridDTO(grid, loc)); err != nil {
				logger.DebugContext(ctx, "calendar stream write failed", "error", err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			logger.InfoContext(ctx, "calendar stream closed")
			// Drain so Run can release its subscriptions.
			for range updates {
			}
			<-done
			return
		}
	}
}

// Slots handles GET /slots?start=8&end=20&interval=30.
func (h *CalendarHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	values := r.URL.Query()
	start, errStart := intParam(values, "start", h.slots.StartHour)
	end, errEnd := intParam(values, "end", h.slots.EndHour)
	interval, errInterval := intParam(values, "interval", h.slots.IntervalMinutes)
	if errStart != nil || errEnd != nil || errInterval != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSlotQuery)
		return
	}

	labels := timeslot.Generate(start, end, interval)
	if labels == nil {
		labels = []string{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotsResponse{Slots: labels})
}

func (h *CalendarHandler) viewRequest(view string, values url.Values) (application.ViewRequest, error) {
	kind, err := calendar.ParseView(view)
	if err != nil {
		return application.ViewRequest{}, errInvalidView
	}
	filter, err := calendar.ParseFilter(values.Get("status"))
	if err != nil {
		return application.ViewRequest{}, errInvalidFilter
	}

	loc := h.service.Location()
	date := h.now().In(loc)
	if raw := strings.TrimSpace(values.Get("date")); raw != "" {
		date, err = time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return application.ViewRequest{}, errInvalidDate
		}
	}
	return application.ViewRequest{View: kind, Date: date, Filter: filter}, nil
}

func intParam(values url.Values, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

type slotsResponse struct {
	Slots []string `json:"slots"`
}

type gridDTO struct {
	View    string      `json:"view"`
	Start   string      `json:"start"`
	End     string      `json:"end"`
	Columns []columnDTO `json:"columns"`
	Rows    []rowDTO    `json:"rows"`
}

type columnDTO struct {
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type rowDTO struct {
	RoomID        string    `json:"room_id"`
	RoomName      string    `json:"room_name"`
	CategoryID    string    `json:"category_id,omitempty"`
	CategoryName  string    `json:"category_name,omitempty"`
	CategoryColor string    `json:"category_color,omitempty"`
	Cells         []cellDTO `json:"cells"`
}

type cellDTO struct {
	Start     string   `json:"start"`
	Status    string   `json:"status"`
	BookingID string   `json:"booking_id,omitempty"`
	Title     string   `json:"title,omitempty"`
	Click     clickDTO `json:"click"`
}

type clickDTO struct {
	Mode      string `json:"mode,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	Anchor    string `json:"anchor,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
}

func toGridDTO(grid calendar.Grid, loc *time.Location) gridDTO {
	format := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.In(loc).Format(time.RFC3339)
	}

	dto := gridDTO{
		View:    string(grid.View),
		Start:   format(grid.Start),
		End:     format(grid.End),
		Columns: make([]columnDTO, 0, len(grid.Columns)),
		Rows:    make([]rowDTO, 0, len(grid.Rows)),
	}
	for _, col := range grid.Columns {
		dto.Columns = append(dto.Columns, columnDTO{Label: col.Label, Start: format(col.Start), End: format(col.End)})
	}
	for _, row := range grid.Rows {
		out := rowDTO{
			RoomID:        row.Room.ID,
			RoomName:      row.Room.Name,
			CategoryID:    row.Room.CategoryID,
			CategoryName:  row.Room.CategoryName,
			CategoryColor: row.Room.CategoryColor,
			Cells:         make([]cellDTO, 0, len(row.Cells)),
		}
		for _, cell := range row.Cells {
			click := cell.Click()
			out.Cells = append(out.Cells, cellDTO{
				Start:     format(cell.Start),
				Status:    string(cell.Status),
				BookingID: cell.BookingID,
				Title:     cell.Title,
				Click: clickDTO{
					Mode:      string(click.Mode),
					RoomID:    click.RoomID,
					Anchor:    format(click.Anchor),
					BookingID: click.BookingID,
				},
			})
		}
		dto.Rows = append(dto.Rows, out)
	}
	return dto
}
