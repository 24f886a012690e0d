package policy

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock returns a settable instant. Safe for concurrent use.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Calendar binds a Clock to the organization's time zone.
type Calendar struct {
	clock Clock
	loc   *time.Location
}

func NewCalendar(clock Clock, loc *time.Location) *Calendar {
	if clock == nil {
		clock = RealClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{clock: clock, loc: loc}
}

// Now returns the current instant in the calendar's zone.
func (c *Calendar) Now() time.Time {
	return c.clock.Now().In(c.loc)
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Today returns the current local date as YYYY-MM-DD.
func (c *Calendar) Today() string {
	return c.Now().Format(DateLayout)
}

// ValidateWindow applies ValidateWindow with the current local date and hour.
func (c *Calendar) ValidateWindow(date string, start, end int) error {
	now := c.Now()
	return ValidateWindow(now.Format(DateLayout), now.Hour(), date, start, end)
}

// ScheduledStart returns the instant a reservation on date begins at startHour.
func (c *Calendar) ScheduledStart(date string, startHour int) (time.Time, error) {
	d, err := ParseDate(date, c.loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), startHour, 0, 0, 0, c.loc), nil
}
