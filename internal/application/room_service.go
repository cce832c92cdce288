package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/example/roombooking/internal/persistence"
)

// RoomService orchestrates validation, authorization, and persistence for
// rooms and room categories.
type RoomService struct {
	rooms       persistence.RoomRepository
	categories  persistence.CategoryRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms persistence.RoomRepository, categories persistence.CategoryRepository, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, categories, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms persistence.RoomRepository, categories persistence.CategoryRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, categories: categories, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// SaveRoom creates a room when params.RoomID is empty and updates it otherwise.
// Administrators only.
func (s *RoomService) SaveRoom(ctx context.Context, params SaveRoomParams) (room persistence.Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SaveRoom", "principal_id", params.Principal.UserID)
	if params.RoomID != "" {
		logger = logger.With("room_id", params.RoomID)
	}
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if params.RoomID == "" {
			logger = logger.With("room_id", room.ID)
		}
		logger.InfoContext(ctx, "room saved")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.rooms == nil {
		err = errors.Mark(errors.New("room repository not configured"), ErrOperationFailed)
		return
	}

	vErr := validateRoomInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	room = persistence.Room{
		ID:                 params.RoomID,
		Name:               strings.TrimSpace(params.Input.Name),
		Capacity:           params.Input.Capacity,
		Facilities:         normalizeOptionalString(params.Input.Facilities),
		AvailableTimeLimit: normalizeOptionalString(params.Input.AvailableTimeLimit),
		Enabled:            params.Input.Enabled,
		CategoryID:         normalizeOptionalString(params.Input.CategoryID),
		UpdatedAt:          s.now(),
	}

	if params.RoomID == "" {
		room.ID = s.idGenerator()
		room.CreatedAt = room.UpdatedAt
		err = mapRoomRepoError(s.rooms.CreateRoom(ctx, room), "create room")
		return
	}

	var existing persistence.Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err, "load room")
		return
	}
	room.CreatedAt = existing.CreatedAt
	err = mapRoomRepoError(s.rooms.UpdateRoom(ctx, room), "update room")
	return
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if s == nil {
		return persistence.Room{}, fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return persistence.Room{}, errors.Mark(errors.New("room repository not configured"), ErrOperationFailed)
	}
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return persistence.Room{}, mapRoomRepoError(err, "load room")
	}
	return room, nil
}

// ListRooms returns the room catalog ordered by name. Non-administrators only
// see enabled rooms.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) (rooms []persistence.Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	}()

	rooms, err = s.rooms.ListRooms(ctx, persistence.RoomFilter{EnabledOnly: !principal.IsAdmin})
	if err != nil {
		err = mapRoomRepoError(err, "list rooms")
	}
	return
}

// SaveCategory creates a category when params.CategoryID is empty and updates
// it otherwise. Administrators only.
func (s *RoomService) SaveCategory(ctx context.Context, params SaveCategoryParams) (category persistence.Category, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SaveCategory", "principal_id", params.Principal.UserID)
	if params.CategoryID != "" {
		logger = logger.With("category_id", params.CategoryID)
	}
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save category", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if params.CategoryID == "" {
			logger = logger.With("category_id", category.ID)
		}
		logger.InfoContext(ctx, "category saved")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.categories == nil {
		err = errors.Mark(errors.New("category repository not configured"), ErrOperationFailed)
		return
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(params.Input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	category = persistence.Category{
		ID:                 params.CategoryID,
		Name:               strings.TrimSpace(params.Input.Name),
		ManagerID:          normalizeOptionalString(params.Input.ManagerID),
		Color:              normalizeOptionalString(params.Input.Color),
		AllowPublicBooking: params.Input.AllowPublicBooking,
		RequiresApproval:   params.Input.RequiresApproval,
		UpdatedAt:          s.now(),
	}

	if params.CategoryID == "" {
		category.ID = s.idGenerator()
		category.CreatedAt = category.UpdatedAt
		err = mapCategoryRepoError(s.categories.CreateCategory(ctx, category), "create category")
		return
	}

	var existing persistence.Category
	existing, err = s.categories.GetCategory(ctx, params.CategoryID)
	if err != nil {
		err = mapCategoryRepoError(err, "load category")
		return
	}
	category.CreatedAt = existing.CreatedAt
	err = mapCategoryRepoError(s.categories.UpdateCategory(ctx, category), "update category")
	return
}

// ListCategories returns every category ordered by name.
func (s *RoomService) ListCategories(ctx context.Context) ([]persistence.Category, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	if s.categories == nil {
		return nil, nil
	}
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		err = mapCategoryRepoError(err, "list categories")
		s.loggerWith(ctx, "ListCategories").ErrorContext(ctx, "failed to list categories", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return categories, nil
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.Capacity != nil && *input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}

	return vErr
}

func mapRoomRepoError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrForeignKey) {
		vErr := &ValidationError{}
		vErr.add("category_id", "category does not exist")
		return vErr
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be positive")
		return vErr
	}
	return mapRepoError(err, operation)
}

func mapCategoryRepoError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		vErr := &ValidationError{}
		vErr.add("name", "a category with this name already exists")
		return vErr
	}
	return mapRepoError(err, operation)
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
