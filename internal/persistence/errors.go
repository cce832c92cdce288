package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a CHECK or NOT NULL constraint fails.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKey is returned when a referenced record does not exist.
	ErrForeignKey = errors.New("persistence: foreign key violation")
	// ErrLocked is returned when the database stayed busy past the retry budget.
	ErrLocked = errors.New("persistence: database locked")
	// ErrOverlap is returned when a write would overlap an active booking of
	// the same room at commit time.
	ErrOverlap = errors.New("persistence: booking overlaps an active booking")
)
