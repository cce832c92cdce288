package testfixtures

import (
	"sync"
	"time"
)

// Clock is a settable time source that always reports instants in the
// calendar location.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewClock returns a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start.In(Location())}
}

// Now reports the clock's instant.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// NowFunc returns Now for injection into services. A nil clock is frozen at
// ReferenceTime.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return ReferenceTime
	}
	return c.Now
}

// Travel moves the clock to t, backwards or forwards.
func (c *Clock) Travel(t time.Time) {
	c.mu.Lock()
	c.now = t.In(Location())
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Today is midnight of the clock's calendar day.
func (c *Clock) Today() time.Time {
	y, m, d := c.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Location())
}

// WeekStart is midnight of the Monday of the clock's week, the anchor of a
// weekly grid.
func (c *Clock) WeekStart() time.Time {
	today := c.Today()
	return today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
}
