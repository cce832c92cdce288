package application

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/example/roombooking/internal/persistence"
)

func TestRoomService_SaveRoom(t *testing.T) {
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, jst)
	capacity := 12

	t.Run("requires administrator privileges", func(t *testing.T) {
		repo := newRoomRepoStub()
		svc := NewRoomService(repo, nil, nil, nil)

		_, err := svc.SaveRoom(context.Background(), SaveRoomParams{
			Principal: Principal{UserID: "user-1"},
			Input:     RoomInput{Name: "Conference Room", Enabled: true},
		})

		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if len(repo.created) != 0 {
			t.Fatalf("expected no room to be created")
		}
	})

	t.Run("validates required attributes", func(t *testing.T) {
		svc := NewRoomService(newRoomRepoStub(), nil, nil, nil)
		zero := 0

		_, err := svc.SaveRoom(context.Background(), SaveRoomParams{
			Principal: admin,
			Input:     RoomInput{Name: "   ", Capacity: &zero},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["name"]; !ok {
			t.Fatalf("expected name validation error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["capacity"]; !ok {
			t.Fatalf("expected capacity validation error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("creates rooms for administrators", func(t *testing.T) {
		repo := newRoomRepoStub()
		facilities := "  Projector  "
		blank := "   "
		svc := NewRoomService(repo, nil, func() string { return "room-1" }, func() time.Time { return now })

		created, err := svc.SaveRoom(context.Background(), SaveRoomParams{
			Principal: admin,
			Input: RoomInput{
				Name:       "  Sakura Hall  ",
				Capacity:   &capacity,
				Facilities: &facilities,
				CategoryID: &blank,
				Enabled:    true,
			},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		if created.ID != "room-1" || created.Name != "Sakura Hall" {
			t.Fatalf("unexpected room: %+v", created)
		}
		if created.Facilities == nil || *created.Facilities != "Projector" {
			t.Fatalf("expected trimmed facilities, got %v", created.Facilities)
		}
		if created.CategoryID != nil {
			t.Fatalf("expected blank category to be dropped, got %v", *created.CategoryID)
		}
		if !created.CreatedAt.Equal(now) || !created.UpdatedAt.Equal(now) {
			t.Fatalf("expected timestamps to use clock, got %v / %v", created.CreatedAt, created.UpdatedAt)
		}
		if len(repo.created) != 1 {
			t.Fatalf("expected one room to be created, got %d", len(repo.created))
		}
	})

	t.Run("updates keep creation time", func(t *testing.T) {
		created := now.Add(-48 * time.Hour)
		repo := newRoomRepoStub(persistence.Room{ID: "room-1", Name: "Old", Enabled: true, CreatedAt: created})
		svc := NewRoomService(repo, nil, nil, func() time.Time { return now })

		updated, err := svc.SaveRoom(context.Background(), SaveRoomParams{
			Principal: admin,
			RoomID:    "room-1",
			Input:     RoomInput{Name: "New", Enabled: false},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if !updated.CreatedAt.Equal(created) {
			t.Fatalf("expected creation time to be preserved, got %v", updated.CreatedAt)
		}
		if updated.Enabled {
			t.Fatalf("expected room to be disabled")
		}
		if len(repo.updated) != 1 {
			t.Fatalf("expected one update, got %d", len(repo.updated))
		}
	})

	t.Run("updating a missing room", func(t *testing.T) {
		svc := NewRoomService(newRoomRepoStub(), nil, nil, nil)

		_, err := svc.SaveRoom(context.Background(), SaveRoomParams{
			Principal: admin,
			RoomID:    "missing",
			Input:     RoomInput{Name: "Ghost"},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unknown category is a field error", func(t *testing.T) {
		repo := newRoomRepoStub()
		repo.saveErr = persistence.ErrForeignKey
		category := "cat-x"
		svc := NewRoomService(repo, nil, nil, nil)

		_, err := svc.SaveRoom(context.Background(), SaveRoomParams{
			Principal: admin,
			Input:     RoomInput{Name: "Room", CategoryID: &category},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["category_id"]; !ok {
			t.Fatalf("expected category validation error, got %v", vErr.FieldErrors)
		}
	})
}

func TestRoomService_ListRooms(t *testing.T) {
	repo := newRoomRepoStub(
		persistence.Room{ID: "room-a", Name: "A", Enabled: true},
		persistence.Room{ID: "room-b", Name: "B", Enabled: false},
	)
	svc := NewRoomService(repo, nil, nil, nil)

	visible, err := svc.ListRooms(context.Background(), Principal{UserID: "user-1"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(visible) != 1 || visible[0].ID != "room-a" {
		t.Fatalf("expected only enabled rooms for members, got %+v", visible)
	}

	all, err := svc.ListRooms(context.Background(), admin)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected administrators to see every room, got %d", len(all))
	}

	repo.listErr = errors.New("boom")
	if _, err := svc.ListRooms(context.Background(), admin); !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
}

func TestRoomService_SaveCategory(t *testing.T) {
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, jst)

	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewRoomService(nil, newCategoryRepoStub(), nil, nil)
		_, err := svc.SaveCategory(context.Background(), SaveCategoryParams{
			Principal: Principal{UserID: "user-1"},
			Input:     CategoryInput{Name: "Large"},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("name is required", func(t *testing.T) {
		svc := NewRoomService(nil, newCategoryRepoStub(), nil, nil)
		_, err := svc.SaveCategory(context.Background(), SaveCategoryParams{Principal: admin})

		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["name"] == "" {
			t.Fatalf("expected name validation error, got %v", err)
		}
	})

	t.Run("creates and lists categories", func(t *testing.T) {
		repo := newCategoryRepoStub()
		color := " #FF8800 "
		svc := NewRoomService(nil, repo, func() string { return "cat-1" }, func() time.Time { return now })

		saved, err := svc.SaveCategory(context.Background(), SaveCategoryParams{
			Principal: admin,
			Input:     CategoryInput{Name: " Large ", Color: &color, RequiresApproval: true},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if saved.ID != "cat-1" || saved.Name != "Large" || saved.Color == nil || *saved.Color != "#FF8800" {
			t.Fatalf("unexpected category: %+v", saved)
		}

		list, err := svc.ListCategories(context.Background())
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(list) != 1 || !list[0].RequiresApproval {
			t.Fatalf("unexpected categories: %+v", list)
		}
	})

	t.Run("duplicate names are field errors", func(t *testing.T) {
		repo := newCategoryRepoStub()
		repo.saveErr = persistence.ErrDuplicate
		svc := NewRoomService(nil, repo, nil, nil)

		_, err := svc.SaveCategory(context.Background(), SaveCategoryParams{
			Principal: admin,
			Input:     CategoryInput{Name: "Large"},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["name"] == "" {
			t.Fatalf("expected name validation error, got %v", err)
		}
	})
}

func TestMapRoomRepoError(t *testing.T) {
	unexpected := errors.New("boom")

	tests := map[string]struct {
		err      error
		expected error
		field    string
	}{
		"nil":         {err: nil, expected: nil},
		"not found":   {err: persistence.ErrNotFound, expected: ErrNotFound},
		"duplicate":   {err: persistence.ErrDuplicate, expected: ErrAlreadyExists},
		"foreign key": {err: persistence.ErrForeignKey, field: "category_id"},
		"constraint":  {err: persistence.ErrConstraintViolation, field: "capacity"},
		"unexpected":  {err: unexpected, expected: ErrOperationFailed},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			result := mapRoomRepoError(tc.err, "save room")

			switch {
			case tc.field != "":
				var vErr *ValidationError
				if !errors.As(result, &vErr) {
					t.Fatalf("expected ValidationError, got %T", result)
				}
				if msg, ok := vErr.FieldErrors[tc.field]; !ok || msg == "" {
					t.Fatalf("expected %s validation message, got %v", tc.field, vErr.FieldErrors)
				}
			case tc.expected == nil:
				if result != nil {
					t.Fatalf("expected nil, got %v", result)
				}
			default:
				if !errors.Is(result, tc.expected) {
					t.Fatalf("expected %v, got %v", tc.expected, result)
				}
			}
		})
	}
}
