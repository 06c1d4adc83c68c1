package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the YYYY-MM-DD form used for every dated key and record.
const DateLayout = "2006-01-02"

// TimeLayout is the wall-clock form stored on history records.
const TimeLayout = "03:04 PM"

// Clock derives calendar dates in a fixed location.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// UTC returns a Clock on the system time in UTC.
func UTC() Clock {
	return Clock{Now: time.Now, Location: time.UTC}
}

// Fixed returns a Clock frozen at t, for tests.
func Fixed(t time.Time) Clock {
	return Clock{Now: func() time.Time { return t }, Location: t.Location()}
}

func (c Clock) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

func (c Clock) Today() string {
	return c.now().Format(DateLayout)
}

func (c Clock) Yesterday() string {
	return c.now().AddDate(0, 0, -1).Format(DateLayout)
}

func (c Clock) TimeOfDay() string {
	return c.now().Format(TimeLayout)
}

// Timestamp is an ISO-8601 instant.
func (c Clock) Timestamp() string {
	return c.now().Format(time.RFC3339)
}

func (c Clock) UnixMilli() int64 {
	return c.now().UnixMilli()
}

// DaysBetween returns the whole number of days from one date to another.
func DaysBetween(from, to string) (int, error) {
	a, err := time.Parse(DateLayout, from)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", from, err)
	}
	b, err := time.Parse(DateLayout, to)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", to, err)
	}
	return int(b.Sub(a).Hours() / 24), nil
}

var timeLayouts = []string{TimeLayout, "3:04 PM", "15:04:05", "15:04"}

// Instant combines a stored date and wall-clock time for ordering.
// Unparseable times resolve to the start of the day.
func Instant(date, clock string) (time.Time, bool) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return day.Add(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), true
		}
	}
	return day, true
}
