// Package timeslot defines how the calendar discretises time: time-of-day
// slots for the daily view and whole days for the weekly and monthly views.
package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has a positive length.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// In converts both bounds to loc.
func (i Interval) In(loc *time.Location) Interval {
	return Interval{Start: i.Start.In(loc), End: i.End.In(loc)}
}

// Slot is one time-of-day row of the daily grid.
type Slot struct {
	Label  string
	Offset time.Duration
	Length time.Duration
}

// Interval places the slot on the calendar day containing day.
func (s Slot) Interval(day time.Time) Interval {
	// Built through time.Date so wall-clock labels survive DST shifts.
	y, m, d := day.Date()
	minutes := int(s.Offset / time.Minute)
	start := time.Date(y, m, d, minutes/60, minutes%60, 0, 0, day.Location())
	return Interval{Start: start, End: start.Add(s.Length)}
}

// Generate returns the "HH:MM" labels from startHour:00 through endHour:00
// inclusive, stepping by intervalMinutes. intervalMinutes is expected to
// divide 60.
func Generate(startHour, endHour, intervalMinutes int) []string {
	slots := Slots(startHour, endHour, intervalMinutes)
	labels := make([]string, len(slots))
	for i, slot := range slots {
		labels[i] = slot.Label
	}
	return labels
}

// Slots is Generate with each label's offset and length attached.
func Slots(startHour, endHour, intervalMinutes int) []Slot {
	if intervalMinutes <= 0 || endHour < startHour || startHour < 0 || endHour > 24 {
		return nil
	}

	step := time.Duration(intervalMinutes) * time.Minute
	slots := make([]Slot, 0, (endHour-startHour)*60/intervalMinutes+1)
	for minute := startHour * 60; minute <= endHour*60; minute += intervalMinutes {
		slots = append(slots, Slot{
			Label:  formatLabel(minute),
			Offset: time.Duration(minute) * time.Minute,
			Length: step,
		})
	}
	return slots
}

// ErrInvalidLabel is returned by Parse for malformed labels.
var ErrInvalidLabel = errors.New("timeslot: label must be HH:MM")

// Parse converts a "HH:MM" label into an offset from midnight.
func Parse(label string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(label), ":")
	if !ok {
		return 0, ErrInvalidLabel
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 24 {
		return 0, ErrInvalidLabel
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, ErrInvalidLabel
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

// DayInterval returns [00:00, next 00:00) of the calendar day containing t.
func DayInterval(t time.Time) Interval {
	start := StartOfDay(t)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns the Monday midnight of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth returns midnight on the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func formatLabel(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
