package attendance

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day, the second half of every staff-day key
// =============================================================================

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day and no location.
// It is stored as midnight UTC so values compare with ==.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day that t falls on when observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// Comparison
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }
func (d Date) IsZero() bool { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) String() string { return d.t.Format(DateLayout) }
func (d Date) IsWeekend() bool { wd := d.Weekday(); return wd == time.Saturday || wd == time.Sunday }

// At returns the instant at hour:min on this day in loc.
func (d Date) At(hour, min int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, loc)
}

// Midnight is the sentinel instant used for records with no real clock event.
func (d Date) Midnight(loc *time.Location) time.Time { return d.At(0, 0, loc) }

// Dates returns every day in [from, to]. Empty when to is before from.
func Dates(from, to Date) []Date {
	var out []Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
