// Package biztime provides the clock abstraction and UTC day-boundary helpers
// used by the renewal engine. All storage and scheduling use UTC.
package biztime

import (
	"sync"
	"time"
)

// DateLayout is the layout of date keys used in idempotency keys and KV keys.
const DateLayout = "2006-01-02"

// Clock is the wall-clock source injected into use cases and workers.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process wall clock in UTC.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock is a settable clock for tests and dry runs.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock creates a ManualClock positioned at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StartOfDayUTC returns 00:00:00 UTC of the day containing t.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfNextDayUTC returns 00:00:00 UTC of the day after t.
func StartOfNextDayUTC(t time.Time) time.Time {
	return StartOfDayUTC(t).AddDate(0, 0, 1)
}

// DayRangeUTC returns the half-open interval [start, end) covering t's UTC day.
func DayRangeUTC(t time.Time) (time.Time, time.Time) {
	start := StartOfDayUTC(t)
	return start, start.AddDate(0, 0, 1)
}

// SameDayUTC reports whether a and b fall on the same UTC calendar day.
func SameDayUTC(a, b time.Time) bool {
	return StartOfDayUTC(a).Equal(StartOfDayUTC(b))
}

// DateKey formats t's UTC date as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// AddDays adds n days of 24 hours to t.
func AddDays(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * 24 * time.Hour)
}

// WholeDaysBetween returns the number of complete 24h periods from 'from' to 'to'.
// Negative when to is before from.
func WholeDaysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
