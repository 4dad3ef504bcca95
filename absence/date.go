package absence

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity time point
// =============================================================================

// Date is a calendar day. Requests are day-granular: the engine never
// cares about the wall-clock time inside a request's range.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }
func (d Date) IsZero() bool                  { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// DaysBetween returns the whole days from one date to another.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// Window returns [00:00 of d, 00:00 of d+1): the half-open instant
// range used to snapshot one day's records for aggregation.
func (d Date) Window() (time.Time, time.Time) {
	start := d.normalize()
	return start, start.AddDate(0, 0, 1)
}

// Contains reports whether an instant falls on this calendar day.
func (d Date) Contains(t time.Time) bool {
	start, end := d.Window()
	return !t.Before(start) && t.Before(end)
}

// RangesOverlap applies the inclusive-bounds overlap test: [a1,a2] and
// [b1,b2] overlap iff a1 <= b2 && b1 <= a2. This covers exact same-day
// matches, partial overlaps, and a single day inside a longer range.
func RangesOverlap(a1, a2, b1, b2 Date) bool {
	return a1.BeforeOrEqual(b2) && b1.BeforeOrEqual(a2)
}
