package application

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/example/roombooking/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrConflict is returned when a booking would overlap an active booking of the same room.
	ErrConflict = errors.New("application: booking conflicts with an existing booking")
	// ErrInvalidTransition is returned when a booking cannot move to the requested status.
	ErrInvalidTransition = errors.New("application: invalid status transition")
	// ErrOperationFailed is returned when the store could not complete a read or write.
	ErrOperationFailed = errors.New("application: operation failed")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// mapRepoError translates persistence failures into application errors,
// keeping the original cause in the chain.
func mapRepoError(err error, operation string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return errors.Mark(errors.Wrap(err, operation), ErrNotFound)
	case errors.Is(err, persistence.ErrDuplicate):
		return errors.Mark(errors.Wrap(err, operation), ErrAlreadyExists)
	case errors.Is(err, persistence.ErrOverlap):
		return errors.Mark(errors.Wrap(err, operation), ErrConflict)
	}
	return errors.Mark(errors.Wrap(err, operation), ErrOperationFailed)
}
