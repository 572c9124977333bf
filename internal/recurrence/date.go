package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used at every storage and API boundary.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}

// FormatDate renders the calendar date of t, ignoring its time of day.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf truncates t to its calendar date in its own location and returns it as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
