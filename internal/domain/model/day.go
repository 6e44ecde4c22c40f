package model

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar day in YYYY-MM-DD form.
type Day string

// DayOf returns the calendar day of t in loc. A nil loc means UTC.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day(t.In(loc).Format(dayLayout))
}

// ParseDay validates s as a calendar day.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(dayLayout, s); err != nil {
		return "", fmt.Errorf("%w: day %q", ErrInvalidRecord, s)
	}
	return Day(s), nil
}

// Bounds returns [start, end) of the day in loc.
func (d Day) Bounds(loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(dayLayout, string(d), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: day %q", ErrInvalidRecord, d)
	}
	return start, start.AddDate(0, 0, 1), nil
}

func (d Day) String() string { return string(d) }
