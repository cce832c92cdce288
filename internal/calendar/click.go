package calendar

import "time"

// Mode tells the booking form how to open after a cell click.
type Mode string

const (
	// ModeNone marks cells that cannot be acted on, such as unoccupied past slots.
	ModeNone   Mode = ""
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Click is what the booking form receives when a cell is selected. Create
// clicks carry the room and anchor; edit clicks carry the occupying booking.
type Click struct {
	Mode      Mode
	RoomID    string
	Anchor    time.Time
	BookingID string
}

// Click resolves the form action for the cell.
func (c Cell) Click() Click {
	switch {
	case c.BookingID != "":
		return Click{Mode: ModeEdit, RoomID: c.RoomID, Anchor: c.Start, BookingID: c.BookingID}
	case c.Status == CellAvailable:
		return Click{Mode: ModeCreate, RoomID: c.RoomID, Anchor: c.Start}
	default:
		return Click{}
	}
}
