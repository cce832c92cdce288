package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/persistence"
)

type roomService interface {
	SaveRoom(ctx context.Context, params application.SaveRoomParams) (persistence.Room, error)
	ListRooms(ctx context.Context, principal application.Principal) ([]persistence.Room, error)
	SaveCategory(ctx context.Context, params application.SaveCategoryParams) (persistence.Category, error)
	ListCategories(ctx context.Context) ([]persistence.Category, error)
}

// RoomHandler serves the room and category catalog.
type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.saveRoom(w, r, "Create", "")
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	roomID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing room id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}
	h.saveRoom(w, r, "Update", roomID)
}

func (h *RoomHandler) saveRoom(w http.ResponseWriter, r *http.Request, operation, roomID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), operation, "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)
	if roomID != "" {
		logger = logger.With("room_id", roomID)
	}

	room, err := h.service.SaveRoom(r.Context(), application.SaveRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "room save failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if roomID == "" {
		status = http.StatusCreated
		logger = logger.With("room_id", room.ID)
	}
	logger.InfoContext(r.Context(), "room saved")
	h.responder.writeJSON(r.Context(), w, status, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	rooms, err := h.service.ListRooms(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(rooms)).DebugContext(r.Context(), "rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *RoomHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, "")
}

func (h *RoomHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(categoryID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCategory)
		return
	}
	h.saveCategory(w, r, categoryID)
}

func (h *RoomHandler) saveCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	category, err := h.service.SaveCategory(r.Context(), application.SaveCategoryParams{
		Principal:  principal,
		CategoryID: categoryID,
		Input:      req.toInput(),
	})
	if err != nil {
		h.log(r.Context(), "SaveCategory", "principal_id", principal.UserID, "category_id", categoryID).
			ErrorContext(r.Context(), "category save failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if categoryID == "" {
		status = http.StatusCreated
	}
	h.responder.writeJSON(r.Context(), w, status, categoryResponse{Category: toCategoryDTO(category)})
}

func (h *RoomHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]categoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryDTO(c))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listCategoriesResponse{Categories: out})
}

type roomRequest struct {
	Name               string  `json:"name"`
	Capacity           *int    `json:"capacity"`
	Facilities         *string `json:"facilities"`
	AvailableTimeLimit *string `json:"available_time_limit"`
	Enabled            *bool   `json:"enabled"`
	CategoryID         *string `json:"category_id"`
}

// toInput defaults Enabled to true when the field is omitted.
func (r roomRequest) toInput() application.RoomInput {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return application.RoomInput{
		Name:               r.Name,
		Capacity:           r.Capacity,
		Facilities:         r.Facilities,
		AvailableTimeLimit: r.AvailableTimeLimit,
		Enabled:            enabled,
		CategoryID:         r.CategoryID,
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Capacity           *int    `json:"capacity,omitempty"`
	Facilities         *string `json:"facilities,omitempty"`
	AvailableTimeLimit *string `json:"available_time_limit,omitempty"`
	Enabled            bool    `json:"enabled"`
	CategoryID         *string `json:"category_id,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func toRoomDTO(room persistence.Room) roomDTO {
	return roomDTO{
		ID:                 room.ID,
		Name:               room.Name,
		Capacity:           room.Capacity,
		Facilities:         room.Facilities,
		AvailableTimeLimit: room.AvailableTimeLimit,
		Enabled:            room.Enabled,
		CategoryID:         room.CategoryID,
		CreatedAt:          room.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:          room.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRoomDTOs(rooms []persistence.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}

type categoryRequest struct {
	Name               string  `json:"name"`
	ManagerID          *string `json:"manager_id"`
	Color              *string `json:"color"`
	AllowPublicBooking bool    `json:"allow_public_booking"`
	RequiresApproval   bool    `json:"requires_approval"`
}

func (r categoryRequest) toInput() application.CategoryInput {
	return application.CategoryInput{
		Name:               r.Name,
		ManagerID:          r.ManagerID,
		Color:              r.Color,
		AllowPublicBooking: r.AllowPublicBooking,
		RequiresApproval:   r.RequiresApproval,
	}
}

type categoryResponse struct {
	Category categoryDTO `json:"category"`
}

type listCategoriesResponse struct {
	Categories []categoryDTO `json:"categories"`
}

type categoryDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	ManagerID          *string `json:"manager_id,omitempty"`
	Color              *string `json:"color,omitempty"`
	AllowPublicBooking bool    `json:"allow_public_booking"`
	RequiresApproval   bool    `json:"requires_approval"`
}

func toCategoryDTO(c persistence.Category) categoryDTO {
	return categoryDTO{
		ID:                 c.ID,
		Name:               c.Name,
		ManagerID:          c.ManagerID,
		Color:              c.Color,
		AllowPublicBooking: c.AllowPublicBooking,
		RequiresApproval:   c.RequiresApproval,
	}
}
