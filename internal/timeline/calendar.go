// Package timeline holds calendar-aware window math and interval analysis used
// by the analytics reports.
package timeline

import "time"

// Calendar interprets instants in one time zone.
type Calendar struct {
	location *time.Location
}

// NewCalendar returns a Calendar for loc. A nil loc means time.Local.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{location: loc}
}

// Location returns the calendar's zone.
func (c Calendar) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// StartOfDay returns local midnight of the day containing t.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	local := t.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location())
}

// TrailingDays returns the instant days*24h before now.
func (c Calendar) TrailingDays(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// DaysBefore returns local midnight of the day `days` calendar days before the
// day containing t.
func (c Calendar) DaysBefore(t time.Time, days int) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, -days)
}

// Hour returns the local hour of day of t, 0 through 23.
func (c Calendar) Hour(t time.Time) int {
	return t.In(c.Location()).Hour()
}
