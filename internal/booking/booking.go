// Package booking holds the status and recurrence vocabulary shared by every
// layer of the room booking service.
package booking

import (
	"errors"
	"strings"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses lists the statuses that occupy a room.
var ActiveStatuses = []Status{StatusPending, StatusApproved}

// IsActive reports whether the status counts toward conflict checks.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusApproved
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RepeatKind selects how a booking recurs.
type RepeatKind string

const (
	RepeatNone   RepeatKind = "no_repeat"
	RepeatDaily  RepeatKind = "daily"
	RepeatWeekly RepeatKind = "weekly"
	RepeatCustom RepeatKind = "custom"
)

// ErrUnknownRepeatKind is returned when a repeat kind string is not recognised.
var ErrUnknownRepeatKind = errors.New("booking: unknown repeat kind")

// ParseRepeatKind normalises user input. An empty value means no repetition.
func ParseRepeatKind(value string) (RepeatKind, error) {
	switch RepeatKind(strings.ToLower(strings.TrimSpace(value))) {
	case "", RepeatNone:
		return RepeatNone, nil
	case RepeatDaily:
		return RepeatDaily, nil
	case RepeatWeekly:
		return RepeatWeekly, nil
	case RepeatCustom:
		return RepeatCustom, nil
	}
	return "", ErrUnknownRepeatKind
}

// Repeats reports whether the kind produces more than one occurrence.
func (k RepeatKind) Repeats() bool {
	return k != "" && k != RepeatNone
}
