package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/persistence"
	"github.com/example/roombooking/internal/realtime"
)

const bookingColumns = `id, room_id, owner_id, title, start_time, end_time, occupied_until, status, repeat_kind,
	recurrence_rule, recurrence_end_date, allow_guests, guest_emails, remarks, created_at, updated_at`

type bookingRow struct {
	ID                string         `db:"id"`
	RoomID            string         `db:"room_id"`
	OwnerID           string         `db:"owner_id"`
	Title             string         `db:"title"`
	StartTime         string         `db:"start_time"`
	EndTime           string         `db:"end_time"`
	OccupiedUntil     string         `db:"occupied_until"`
	Status            string         `db:"status"`
	RepeatKind        string         `db:"repeat_kind"`
	RecurrenceRule    sql.NullString `db:"recurrence_rule"`
	RecurrenceEndDate sql.NullString `db:"recurrence_end_date"`
	AllowGuests       bool           `db:"allow_guests"`
	GuestEmails       string         `db:"guest_emails"`
	Remarks           string         `db:"remarks"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	store *Store
	guard persistence.OverlapGuard
}

// NewBookingRepository creates a booking repository. When guard is non-nil
// every write of an active booking re-checks overlaps inside the write
// transaction and fails with persistence.ErrOverlap.
func NewBookingRepository(store *Store, guard persistence.OverlapGuard) *BookingRepository {
	return &BookingRepository{store: store, guard: guard}
}

// CreateBooking inserts a new booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, b persistence.Booking) error {
	if err := validateBooking(b); err != nil {
		return err
	}
	now := r.store.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	row := toBookingRow(b)

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (:id, :room_id, :owner_id, :title, :start_time, :end_time, :occupied_until, :status, :repeat_kind,
			:recurrence_rule, :recurrence_end_date, :allow_guests, :guest_emails, :remarks, :created_at, :updated_at)
	`

	event := realtime.ChangeEvent{Collection: realtime.CollectionBookings, Op: realtime.OpInsert, ID: b.ID}
	return r.store.write(ctx, event, func(tx *sqlx.Tx) error {
		if err := r.checkOverlap(ctx, tx, b); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, query, row)
		return err
	})
}

// UpdateBooking replaces every mutable column of an existing booking.
func (r *BookingRepository) UpdateBooking(ctx context.Context, b persistence.Booking) error {
	if err := validateBooking(b); err != nil {
		return err
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = r.store.now()
	}
	row := toBookingRow(b)

	query := `
		UPDATE bookings
		SET room_id = :room_id, owner_id = :owner_id, title = :title, start_time = :start_time, end_time = :end_time,
			occupied_until = :occupied_until, status = :status, repeat_kind = :repeat_kind,
			recurrence_rule = :recurrence_rule, recurrence_end_date = :recurrence_end_date,
			allow_guests = :allow_guests, guest_emails = :guest_emails, remarks = :remarks, updated_at = :updated_at
		WHERE id = :id
	`

	event := realtime.ChangeEvent{Collection: realtime.CollectionBookings, Op: realtime.OpUpdate, ID: b.ID}
	return r.store.write(ctx, event, func(tx *sqlx.Tx) error {
		if err := r.checkOverlap(ctx, tx, b); err != nil {
			return err
		}
		result, err := tx.NamedExecContext(ctx, query, row)
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

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	var row bookingRow
	if err := r.store.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id); err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return r.fromRow(row)
}

// ListBookings returns bookings matching filter ordered by start time.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	query, args, err := buildBookingQuery(filter)
	if err != nil {
		return nil, err
	}
	var rows []bookingRow
	if err := r.store.db.SelectContext(ctx, &rows, r.store.db.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	return r.fromRows(rows)
}

func (r *BookingRepository) checkOverlap(ctx context.Context, tx *sqlx.Tx, b persistence.Booking) error {
	if r.guard == nil || !b.Status.IsActive() {
		return nil
	}
	query, args, err := buildBookingQuery(persistence.BookingFilter{
		RoomID:       b.RoomID,
		ExcludeID:    b.ID,
		Statuses:     booking.ActiveStatuses,
		StartsBefore: ptr(b.OccupiedUntil()),
		EndsAfter:    ptr(b.Start),
	})
	if err != nil {
		return err
	}
	var rows []bookingRow
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
		return err
	}
	others, err := r.fromRows(rows)
	if err != nil {
		return err
	}
	overlap, err := r.guard(b, others)
	if err != nil {
		return err
	}
	if overlap {
		return persistence.ErrOverlap
	}
	return nil
}

func buildBookingQuery(filter persistence.BookingFilter) (string, []any, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.ExcludeID != "" {
		conditions = append(conditions, "id <> ?")
		args = append(args, filter.ExcludeID)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status IN (?)")
		args = append(args, statusStrings(filter.Statuses))
	}
	if len(filter.ExcludeStatuses) > 0 {
		conditions = append(conditions, "status NOT IN (?)")
		args = append(args, statusStrings(filter.ExcludeStatuses))
	}
	if filter.StartsBefore != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		conditions = append(conditions, "occupied_until > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("build booking query: %w", err)
	}
	return query, args, nil
}

func validateBooking(b persistence.Booking) error {
	if b.ID == "" || b.RoomID == "" || strings.TrimSpace(b.Title) == "" {
		return persistence.ErrConstraintViolation
	}
	if !b.End.After(b.Start) || !b.Status.Valid() {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func toBookingRow(b persistence.Booking) bookingRow {
	repeat := b.RepeatKind
	if repeat == "" {
		repeat = booking.RepeatNone
	}
	row := bookingRow{
		ID:             b.ID,
		RoomID:         b.RoomID,
		OwnerID:        b.OwnerID,
		Title:          b.Title,
		StartTime:      formatTime(b.Start),
		EndTime:        formatTime(b.End),
		OccupiedUntil:  formatTime(b.OccupiedUntil()),
		Status:         string(b.Status),
		RepeatKind:     string(repeat),
		RecurrenceRule: nullString(b.RecurrenceRule),
		AllowGuests:    b.AllowGuests,
		GuestEmails:    strings.Join(b.GuestEmails, ","),
		Remarks:        b.Remarks,
		CreatedAt:      formatTime(b.CreatedAt),
		UpdatedAt:      formatTime(b.UpdatedAt),
	}
	if b.RecurrenceEndDate != nil {
		row.RecurrenceEndDate = sql.NullString{String: b.RecurrenceEndDate.Format(dateLayout), Valid: true}
	}
	return row
}

func (r *BookingRepository) fromRow(row bookingRow) (persistence.Booking, error) {
	b := persistence.Booking{
		ID:             row.ID,
		RoomID:         row.RoomID,
		OwnerID:        row.OwnerID,
		Title:          row.Title,
		Status:         booking.Status(row.Status),
		RepeatKind:     booking.RepeatKind(row.RepeatKind),
		RecurrenceRule: stringPtr(row.RecurrenceRule),
		AllowGuests:    row.AllowGuests,
		Remarks:        row.Remarks,
	}

	var err error
	if b.Start, err = r.store.parseTime(row.StartTime); err != nil {
		return persistence.Booking{}, err
	}
	if b.End, err = r.store.parseTime(row.EndTime); err != nil {
		return persistence.Booking{}, err
	}
	if b.CreatedAt, err = r.store.parseTime(row.CreatedAt); err != nil {
		return persistence.Booking{}, err
	}
	if b.UpdatedAt, err = r.store.parseTime(row.UpdatedAt); err != nil {
		return persistence.Booking{}, err
	}
	if row.RecurrenceEndDate.Valid {
		date, err := time.ParseInLocation(dateLayout, row.RecurrenceEndDate.String, r.store.location)
		if err != nil {
			return persistence.Booking{}, fmt.Errorf("parse recurrence end date %q: %w", row.RecurrenceEndDate.String, err)
		}
		b.RecurrenceEndDate = &date
	}
	if row.GuestEmails != "" {
		b.GuestEmails = strings.Split(row.GuestEmails, ",")
	}
	return b, nil
}

func (r *BookingRepository) fromRows(rows []bookingRow) ([]persistence.Booking, error) {
	out := make([]persistence.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := r.fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func statusStrings(statuses []booking.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
