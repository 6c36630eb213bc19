// Package session tracks the trading-hours calendar (spec.md §6
// Configuration: "Trading hours {start, end, timezone}") and owns the
// session-boundary sweep that cancels resting `day` time-in-force orders,
// a gap the distilled spec names (§4.2) but never assigns an owner for
// (SPEC_FULL.md "Supplemented Features" #1).
package session

import (
	"time"
)

// Hours describes one trading day's open/close window in a fixed
// timezone, e.g. {09:00, 17:00, "America/New_York"}.
type Hours struct {
	Start    time.Duration // offset from local midnight
	End      time.Duration
	Location *time.Location
}

// Calendar answers IsOpen/NextClose queries against Hours.
type Calendar struct {
	hours Hours
}

// New builds a Calendar for the given hours.
func New(hours Hours) *Calendar {
	return &Calendar{hours: hours}
}

// IsOpen reports whether t falls within the configured trading session.
func (c *Calendar) IsOpen(t time.Time) bool {
	local := t.In(c.hours.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.hours.Location)
	offset := local.Sub(midnight)
	return offset >= c.hours.Start && offset < c.hours.End
}

// NextClose returns the next session-close instant at or after t.
func (c *Calendar) NextClose(t time.Time) time.Time {
	local := t.In(c.hours.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.hours.Location)
	close := midnight.Add(c.hours.End)
	if !close.After(local) {
		close = close.AddDate(0, 0, 1)
	}
	return close
}

// DurationUntilNextClose is a convenience for scheduling the sweep timer.
func (c *Calendar) DurationUntilNextClose(t time.Time) time.Duration {
	return c.NextClose(t).Sub(t)
}
