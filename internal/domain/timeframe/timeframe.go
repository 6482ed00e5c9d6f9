// Package timeframe models calendar availability: civil dates, item availability
// windows and blocked datetime intervals.
package timeframe

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of a civil date.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// Date is a civil date, stored as midnight UTC.
type Date struct {
	t time.Time
}

// NewDate creates a Date from its calendar components.
func NewDate(year int, month time.Month, dayOfMonth int) Date {
	return Date{t: time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// FromDays converts days since the Unix epoch to a Date.
func FromDays(n int64) Date {
	return Date{t: time.Unix(n*int64(day/time.Second), 0).UTC()}
}

// Days returns the number of days since the Unix epoch.
func (d Date) Days() int64 { return d.t.Unix() / int64(day/time.Second) }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return d.t }

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string { return d.t.Format(DateLayout) }

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Window is an item availability window with inclusive day bounds.
// A nil bound is open-ended; a window with both bounds nil is "always available".
type Window struct {
	Start *Date
	End   *Date
}

// IsZero reports whether the window carries no dates at all.
func (w Window) IsZero() bool { return w.Start == nil && w.End == nil }

// OverlapsDates reports whether the window overlaps the inclusive date range
// [begin, end]. Missing bounds on either side never exclude.
func (w Window) OverlapsDates(begin, end *Date) bool {
	if end != nil && w.Start != nil && w.Start.After(*end) {
		return false
	}
	if begin != nil && w.End != nil && w.End.Before(*begin) {
		return false
	}
	return true
}

// Intersects reports whether the window intersects the blocked interval.
// Dateless windows never intersect.
func (w Window) Intersects(iv Interval) bool {
	if w.IsZero() {
		return false
	}
	startOK := func(t time.Time) bool { return w.Start == nil || !t.Before(w.Start.t) }
	endOK := func(t time.Time) bool { return w.End == nil || t.Before(w.End.t.Add(day)) }

	if iv.Start.Equal(iv.End) {
		return startOK(iv.Start) && endOK(iv.Start)
	}
	// Half-open overlap: windowStart < iv.End && iv.Start < windowEndExclusive.
	if w.Start != nil && !w.Start.t.Before(iv.End) {
		return false
	}
	if w.End != nil && !iv.Start.Before(w.End.t.Add(day)) {
		return false
	}
	return true
}

// Interval is a blocked datetime range, half-open [Start, End).
// A zero-length interval blocks a single instant.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates and creates an Interval.
func NewInterval(start, end time.Time) (Interval, error) {
	if end.Before(start) {
		return Interval{}, fmt.Errorf("interval end %s is before start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}
