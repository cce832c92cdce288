// Package calendar computes the room × time status matrix rendered by the
// daily, weekly and monthly calendar views.
package calendar

import (
	"errors"
	"strings"
	"time"

	"github.com/example/roombooking/internal/booking"
	"github.com/example/roombooking/internal/scheduler"
	"github.com/example/roombooking/internal/timeslot"
)

// View identifies a calendar layout.
type View string

const (
	ViewDaily   View = "daily"
	ViewWeekly  View = "weekly"
	ViewMonthly View = "monthly"
)

// Filter restricts the bookings considered before the grid is computed.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterUpcoming Filter = "upcoming"
	FilterPast     Filter = "past"
)

// CellStatus is the rendered state of one grid cell.
type CellStatus string

const (
	CellAvailable CellStatus = "available"
	CellPending   CellStatus = "pending"
	CellBooked    CellStatus = "booked"
	CellRejected  CellStatus = "rejected"
	CellCancelled CellStatus = "cancelled"
	CellPast      CellStatus = "past"
)

var (
	// ErrUnknownView is returned for view names other than daily, weekly or monthly.
	ErrUnknownView = errors.New("calendar: unknown view")
	// ErrUnknownFilter is returned for filter names other than all, upcoming or past.
	ErrUnknownFilter = errors.New("calendar: unknown status filter")
)

// ParseView converts a query value into a View. Empty means daily.
func ParseView(value string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(value))) {
	case "", ViewDaily:
		return ViewDaily, nil
	case ViewWeekly:
		return ViewWeekly, nil
	case ViewMonthly:
		return ViewMonthly, nil
	}
	return "", ErrUnknownView
}

// ParseFilter converts a query value into a Filter. Empty means all.
func ParseFilter(value string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(value))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterUpcoming:
		return FilterUpcoming, nil
	case FilterPast:
		return FilterPast, nil
	}
	return "", ErrUnknownFilter
}

// Room is a grid row header.
type Room struct {
	ID            string
	Name          string
	CategoryID    string
	CategoryName  string
	CategoryColor string
}

// Entry is one occupied interval of a booking. Recurring bookings contribute
// one entry per occurrence.
type Entry struct {
	BookingID string
	RoomID    string
	OwnerID   string
	Title     string
	Status    booking.Status
	Start     time.Time
	End       time.Time
}

// Input is everything a grid is computed from.
type Input struct {
	Rooms   []Room
	Entries []Entry
	Now     time.Time
	Filter  Filter
}

// Column is a grid column header and its anchor interval.
type Column struct {
	Label string
	Start time.Time
	End   time.Time
}

// Cell is the status of one (room, anchor) pair.
type Cell struct {
	RoomID    string
	Start     time.Time
	End       time.Time
	Status    CellStatus
	BookingID string
	Title     string
}

// Row holds the cells of one room.
type Row struct {
	Room  Room
	Cells []Cell
}

// Grid is the computed matrix.
type Grid struct {
	View    View
	Start   time.Time
	End     time.Time
	Columns []Column
	Rows    []Row
}

// Window returns the interval a view shows for the given date.
func Window(view View, date time.Time) (timeslot.Interval, error) {
	switch view {
	case ViewDaily:
		return timeslot.DayInterval(date), nil
	case ViewWeekly:
		start := timeslot.StartOfWeek(date)
		return timeslot.Interval{Start: start, End: start.AddDate(0, 0, 7)}, nil
	case ViewMonthly:
		start := timeslot.StartOfMonth(date)
		return timeslot.Interval{Start: start, End: start.AddDate(0, 1, 0)}, nil
	}
	return timeslot.Interval{}, ErrUnknownView
}

// FilterEntries applies the status filter. Upcoming keeps entries ending after
// now; past keeps the rest.
func FilterEntries(entries []Entry, filter Filter, now time.Time) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		ended := !entry.End.After(now)
		switch filter {
		case FilterUpcoming:
			if ended {
				continue
			}
		case FilterPast:
			if !ended {
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

// BuildDaily lays out rooms against the time slots of one day.
func BuildDaily(in Input, day time.Time, slots []timeslot.Slot) Grid {
	columns := make([]Column, 0, len(slots))
	for _, slot := range slots {
		iv := slot.Interval(day)
		columns = append(columns, Column{Label: slot.Label, Start: iv.Start, End: iv.End})
	}
	window := timeslot.DayInterval(day)
	return build(in, ViewDaily, window, columns, false)
}

// BuildWeekly lays out rooms against the seven days of the Monday-start week
// containing date.
func BuildWeekly(in Input, date time.Time) Grid {
	window, _ := Window(ViewWeekly, date)
	return build(in, ViewWeekly, window, dayColumns(window, "Mon 01/02"), true)
}

// BuildMonthly lays out rooms against every day of the month containing date.
func BuildMonthly(in Input, date time.Time) Grid {
	window, _ := Window(ViewMonthly, date)
	return build(in, ViewMonthly, window, dayColumns(window, "2"), true)
}

func dayColumns(window timeslot.Interval, layout string) []Column {
	var columns []Column
	for day := window.Start; day.Before(window.End); day = day.AddDate(0, 0, 1) {
		iv := timeslot.DayInterval(day)
		columns = append(columns, Column{Label: day.Format(layout), Start: iv.Start, End: iv.End})
	}
	return columns
}

func build(in Input, view View, window timeslot.Interval, columns []Column, dayGranularity bool) Grid {
	byRoom := make(map[string][]Entry, len(in.Rooms))
	for _, entry := range FilterEntries(in.Entries, in.Filter, in.Now) {
		byRoom[entry.RoomID] = append(byRoom[entry.RoomID], entry)
	}

	grid := Grid{
		View:    view,
		Start:   window.Start,
		End:     window.End,
		Columns: columns,
		Rows:    make([]Row, 0, len(in.Rooms)),
	}

	for _, room := range in.Rooms {
		row := Row{Room: room, Cells: make([]Cell, 0, len(columns))}
		for _, col := range columns {
			anchor := timeslot.Interval{Start: col.Start, End: col.End}
			cell := Cell{RoomID: room.ID, Start: col.Start, End: col.End}
			if entry, ok := occupant(byRoom[room.ID], anchor); ok {
				cell.BookingID = entry.BookingID
				cell.Title = entry.Title
				cell.Status = occupiedStatus(entry, anchor, in.Now, dayGranularity)
			} else if !anchor.End.After(in.Now) {
				cell.Status = CellPast
			} else {
				cell.Status = CellAvailable
			}
			row.Cells = append(row.Cells, cell)
		}
		grid.Rows = append(grid.Rows, row)
	}

	return grid
}

// occupant returns the first entry in scan order covering the anchor.
func occupant(entries []Entry, anchor timeslot.Interval) (Entry, bool) {
	for _, entry := range entries {
		if scheduler.Overlaps(timeslot.Interval{Start: entry.Start, End: entry.End}, anchor) {
			return entry, true
		}
	}
	return Entry{}, false
}

func occupiedStatus(entry Entry, anchor timeslot.Interval, now time.Time, dayGranularity bool) CellStatus {
	ended := !entry.End.After(now)
	if dayGranularity && timeslot.SameDay(anchor.Start, now) {
		ended = false
	}
	if ended {
		return CellPast
	}
	switch entry.Status {
	case booking.StatusApproved:
		return CellBooked
	case booking.StatusRejected:
		return CellRejected
	case booking.StatusCancelled:
		return CellCancelled
	default:
		return CellPending
	}
}
