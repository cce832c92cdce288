package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/roombooking/internal/persistence"
	"github.com/example/roombooking/internal/realtime"
)

const roomColumns = `id, name, capacity, facilities, available_time_limit, enabled, category_id, created_at, updated_at`

type roomRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Capacity           sql.NullInt64  `db:"capacity"`
	Facilities         sql.NullString `db:"facilities"`
	AvailableTimeLimit sql.NullString `db:"available_time_limit"`
	Enabled            bool           `db:"enabled"`
	CategoryID         sql.NullString `db:"category_id"`
	CreatedAt          string         `db:"created_at"`
	UpdatedAt          string         `db:"updated_at"`
}

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	store *Store
}

// NewRoomRepository creates a new SQLite room repository
func NewRoomRepository(store *Store) *RoomRepository {
	return &RoomRepository{store: store}
}

// CreateRoom inserts a new room into the database
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if err := validateRoom(room); err != nil {
		return err
	}
	now := r.store.now()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}

	query := `
		INSERT INTO rooms (` + roomColumns + `)
		VALUES (:id, :name, :capacity, :facilities, :available_time_limit, :enabled, :category_id, :created_at, :updated_at)
	`
	event := realtime.ChangeEvent{Collection: realtime.CollectionRooms, Op: realtime.OpInsert, ID: room.ID}
	return r.store.write(ctx, event, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, query, toRoomRow(room))
		return err
	})
}

// UpdateRoom updates an existing room in the database
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if err := validateRoom(room); err != nil {
		return err
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = r.store.now()
	}

	query := `
		UPDATE rooms
		SET name = :name, capacity = :capacity, facilities = :facilities,
			available_time_limit = :available_time_limit, enabled = :enabled,
			category_id = :category_id, updated_at = :updated_at
		WHERE id = :id
	`
	event := realtime.ChangeEvent{Collection: realtime.CollectionRooms, Op: realtime.OpUpdate, ID: room.ID}
	return r.store.write(ctx, event, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, query, toRoomRow(room))
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// GetRoom retrieves a room by ID from the database
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	var row roomRow
	if err := r.store.db.GetContext(ctx, &row, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id); err != nil {
		return persistence.Room{}, mapError(err)
	}
	return r.fromRow(row)
}

// ListRooms returns rooms ordered by name.
func (r *RoomRepository) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.EnabledOnly {
		conditions = append(conditions, "enabled = 1")
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	query := `SELECT ` + roomColumns + ` FROM rooms`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name, id"

	var rows []roomRow
	if err := r.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		room, err := r.fromRow(row)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func validateRoom(room persistence.Room) error {
	if room.ID == "" || strings.TrimSpace(room.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	if room.Capacity != nil && *room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func toRoomRow(room persistence.Room) roomRow {
	row := roomRow{
		ID:                 room.ID,
		Name:               room.Name,
		Facilities:         nullString(room.Facilities),
		AvailableTimeLimit: nullString(room.AvailableTimeLimit),
		Enabled:            room.Enabled,
		CategoryID:         nullString(room.CategoryID),
		CreatedAt:          formatTime(room.CreatedAt),
		UpdatedAt:          formatTime(room.UpdatedAt),
	}
	if room.Capacity != nil {
		row.Capacity = sql.NullInt64{Int64: int64(*room.Capacity), Valid: true}
	}
	return row
}

func (r *RoomRepository) fromRow(row roomRow) (persistence.Room, error) {
	room := persistence.Room{
		ID:                 row.ID,
		Name:               row.Name,
		Facilities:         stringPtr(row.Facilities),
		AvailableTimeLimit: stringPtr(row.AvailableTimeLimit),
		Enabled:            row.Enabled,
		CategoryID:         stringPtr(row.CategoryID),
	}
	if row.Capacity.Valid {
		capacity := int(row.Capacity.Int64)
		room.Capacity = &capacity
	}
	var err error
	if room.CreatedAt, err = r.store.parseTime(row.CreatedAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = r.store.parseTime(row.UpdatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}
