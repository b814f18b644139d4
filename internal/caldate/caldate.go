// Package caldate implements timezone-naive calendar dates.
//
// A Date is a calendar day ("2025-01-15"), not an instant. Parsing and
// formatting never apply a UTC-offset shift: a date string read back out is
// byte-identical regardless of the host timezone. Every call site that needs
// to render or compare a due date goes through this package so the
// offset-compensation bug class cannot reappear in individual views.
package caldate

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ISO is the wire layout for calendar dates.
const ISO = "2006-01-02"

// Date is a calendar day. The zero value is "no date"; use IsZero to test.
// Dates are comparable with ==.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New builds a Date from components, normalizing overflow the way time.Date
// does (Jan 32 becomes Feb 1).
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Parse parses an ISO "YYYY-MM-DD" string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(ISO, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing calendar date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// MustParse parses an ISO date string and panics on error. Test helper.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime extracts the calendar day of t in t's own location. The instant
// is never converted to another zone first.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current calendar day in local time, normalized to
// date-only precision.
func Today() Date {
	return FromTime(time.Now())
}

// Time returns the date as a UTC midnight instant, for arithmetic only.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero (absent) date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// String renders the date as "YYYY-MM-DD".
func (d Date) String() string {
	return d.Time().Format(ISO)
}

// Format renders the date with an arbitrary time layout. Because the
// underlying instant is constructed from the date's own components, no
// offset shift can occur.
func (d Date) Format(layout string) string {
	return d.Time().Format(layout)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// DaysBetween returns the whole number of days from a to b. Negative if b
// precedes a.
func DaysBetween(a, b Date) int {
	return int(b.Time().Sub(a.Time()) / (24 * time.Hour))
}

// Min returns the earlier of two dates.
func Min(a, b Date) Date {
	if b.Before(a) {
		return b
	}
	return a
}

// Max returns the later of two dates.
func Max(a, b Date) Date {
	if b.After(a) {
		return b
	}
	return a
}

// Reformat parses an ISO date string and renders it with the given layout.
// The single entry point for displaying stored date strings.
func Reformat(s, layout string) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return d.Format(layout), nil
}

// MarshalJSON encodes the date as a quoted ISO string, or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a quoted ISO string or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("calendar date: expected string, got %s", s)
	}
	parsed, err := Parse(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalYAML decodes an ISO scalar from seed fixtures.
func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML encodes the date as an ISO scalar.
func (d Date) MarshalYAML() (interface{}, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}
