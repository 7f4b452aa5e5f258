package recurrence

import (
	"fmt"
	"time"
)

// ClockTime is a timezone-naive wall-clock time of day. Templates store
// "HH:MM" strings without zone information; composing a ClockTime onto a date
// yields an instant in that date's location. Participants in other timezones
// therefore see the scheduler host's wall clock, a known limitation carried
// over from the template format.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses a strict "HH:MM" string.
func ParseClockTime(value string) (ClockTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(value, "%2d:%2d", &hour, &minute); err != nil || len(value) != 5 || value[2] != ':' {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, value)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// On composes the clock time onto the given date's calendar day and location.
func (c ClockTime) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, date.Location())
}

// String renders the canonical "HH:MM" form.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Span combines a calendar date with start and end clock times. When the end
// does not come after the start the meeting spans midnight, so the end rolls
// over to the following day.
func Span(date time.Time, start, end ClockTime) (time.Time, time.Time) {
	startAt := start.On(date)
	endAt := end.On(date)
	if !endAt.After(startAt) {
		endAt = endAt.AddDate(0, 0, 1)
	}
	return startAt, endAt
}
