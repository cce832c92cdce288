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

const categoryColumns = `id, name, manager_id, color, allow_public_booking, requires_approval, created_at, updated_at`

type categoryRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	ManagerID          sql.NullString `db:"manager_id"`
	Color              sql.NullString `db:"color"`
	AllowPublicBooking bool           `db:"allow_public_booking"`
	RequiresApproval   bool           `db:"requires_approval"`
	CreatedAt          string         `db:"created_at"`
	UpdatedAt          string         `db:"updated_at"`
}

// CategoryRepository implements persistence.CategoryRepository using SQLite.
type CategoryRepository struct {
	store *Store
}

// NewCategoryRepository creates a category repository.
func NewCategoryRepository(store *Store) *CategoryRepository {
	return &CategoryRepository{store: store}
}

// CreateCategory inserts a category. Names are unique.
func (r *CategoryRepository) CreateCategory(ctx context.Context, category persistence.Category) error {
	if category.ID == "" || strings.TrimSpace(category.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	now := r.store.now()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	if category.UpdatedAt.IsZero() {
		category.UpdatedAt = category.CreatedAt
	}

	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES (:id, :name, :manager_id, :color, :allow_public_booking, :requires_approval, :created_at, :updated_at)
	`
	event := realtime.ChangeEvent{Collection: realtime.CollectionCategories, Op: realtime.OpInsert, ID: category.ID}
	return r.store.write(ctx, event, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, query, toCategoryRow(category))
		return err
	})
}

// UpdateCategory replaces the mutable fields of a category.
func (r *CategoryRepository) UpdateCategory(ctx context.Context, category persistence.Category) error {
	if category.ID == "" || strings.TrimSpace(category.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	if category.UpdatedAt.IsZero() {
		category.UpdatedAt = r.store.now()
	}

	query := `
		UPDATE categories
		SET name = :name, manager_id = :manager_id, color = :color,
			allow_public_booking = :allow_public_booking, requires_approval = :requires_approval,
			updated_at = :updated_at
		WHERE id = :id
	`
	event := realtime.ChangeEvent{Collection: realtime.CollectionCategories, Op: realtime.OpUpdate, ID: category.ID}
	return r.store.write(ctx, event, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, query, toCategoryRow(category))
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

// GetCategory retrieves a category by ID.
func (r *CategoryRepository) GetCategory(ctx context.Context, id string) (persistence.Category, error) {
	if id == "" {
		return persistence.Category{}, persistence.ErrNotFound
	}
	var row categoryRow
	if err := r.store.db.GetContext(ctx, &row, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id); err != nil {
		return persistence.Category{}, mapError(err)
	}
	return r.fromRow(row)
}

// ListCategories returns every category ordered by name.
func (r *CategoryRepository) ListCategories(ctx context.Context) ([]persistence.Category, error) {
	var rows []categoryRow
	if err := r.store.db.SelectContext(ctx, &rows, `SELECT `+categoryColumns+` FROM categories ORDER BY name, id`); err != nil {
		return nil, mapError(err)
	}
	categories := make([]persistence.Category, 0, len(rows))
	for _, row := range rows {
		category, err := r.fromRow(row)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func toCategoryRow(category persistence.Category) categoryRow {
	return categoryRow{
		ID:                 category.ID,
		Name:               category.Name,
		ManagerID:          nullString(category.ManagerID),
		Color:              nullString(category.Color),
		AllowPublicBooking: category.AllowPublicBooking,
		RequiresApproval:   category.RequiresApproval,
		CreatedAt:          formatTime(category.CreatedAt),
		UpdatedAt:          formatTime(category.UpdatedAt),
	}
}

func (r *CategoryRepository) fromRow(row categoryRow) (persistence.Category, error) {
	category := persistence.Category{
		ID:                 row.ID,
		Name:               row.Name,
		ManagerID:          stringPtr(row.ManagerID),
		Color:              stringPtr(row.Color),
		AllowPublicBooking: row.AllowPublicBooking,
		RequiresApproval:   row.RequiresApproval,
	}
	var err error
	if category.CreatedAt, err = r.store.parseTime(row.CreatedAt); err != nil {
		return persistence.Category{}, err
	}
	if category.UpdatedAt, err = r.store.parseTime(row.UpdatedAt); err != nil {
		return persistence.Category{}, err
	}
	return category, nil
}
