package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// PatternKind enumerates the supported recurrence shapes.
type PatternKind int

const (
	// PatternUnspecified indicates the pattern is not set.
	PatternUnspecified PatternKind = iota
	// PatternDaily repeats on every day in the window.
	PatternDaily
	// PatternWeekly repeats on a single weekday.
	PatternWeekly
	// PatternMonthly repeats on a single day of the month.
	PatternMonthly
)

// Pattern is a closed recurrence variant. Weekday is meaningful only for
// weekly patterns and DayOfMonth only for monthly ones; NewPattern enforces
// both before a Pattern reaches the engine.
type Pattern struct {
	Kind       PatternKind
	Weekday    time.Weekday
	DayOfMonth int
}

// ErrInvalidPattern indicates the recurrence pattern name is not supported.
var ErrInvalidPattern = errors.New("recurrence: invalid pattern")

// ErrMissingWeekday indicates a weekly pattern without a weekday selection.
var ErrMissingWeekday = errors.New("recurrence: weekly pattern requires a weekday")

// ErrMissingMonthDay indicates a monthly pattern without a day of month.
var ErrMissingMonthDay = errors.New("recurrence: monthly pattern requires a day of month")

// ErrInvalidClockTime indicates a wall-clock string is not strict "HH:MM".
var ErrInvalidClockTime = errors.New("recurrence: invalid clock time")

// ErrInvalidLookahead indicates a negative lookahead window.
var ErrInvalidLookahead = errors.New("recurrence: lookahead must not be negative")

// NewPattern validates and constructs a Pattern from its stored form.
// dayOfWeek and dayOfMonth are pointers because each is required only for its
// own pattern kind; a nil or out-of-range value for the active kind is a
// template configuration error.
func NewPattern(kind string, dayOfWeek, dayOfMonth *int) (Pattern, error) {
	switch kind {
	case "daily":
		return Pattern{Kind: PatternDaily}, nil
	case "weekly":
		if dayOfWeek == nil || *dayOfWeek < 0 || *dayOfWeek > 6 {
			return Pattern{}, ErrMissingWeekday
		}
		return Pattern{Kind: PatternWeekly, Weekday: time.Weekday(*dayOfWeek)}, nil
	case "monthly":
		if dayOfMonth == nil || *dayOfMonth < 1 || *dayOfMonth > 31 {
			return Pattern{}, ErrMissingMonthDay
		}
		return Pattern{Kind: PatternMonthly, DayOfMonth: *dayOfMonth}, nil
	default:
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, kind)
	}
}

// Rule bounds a pattern with an optional inclusive end date.
type Rule struct {
	Pattern   Pattern
	WindowEnd *time.Time
}

// Expand produces the ordered calendar dates on which an instance should
// exist, starting at the reference date and covering lookaheadDays further
// days inclusive. Each returned time is midnight in the reference location.
//
// The engine is a pure function of its inputs:
//   - daily patterns include every candidate,
//   - weekly patterns include candidates matching the selected weekday,
//   - monthly patterns include candidates matching the selected day of month;
//     days that do not exist in a month (such as the 31st in February) simply
//     never match, with no rollover.
//
// Expansion stops early once a candidate passes the rule's window end, since
// candidates are produced in increasing order.
func Expand(rule Rule, reference time.Time, lookaheadDays int) ([]time.Time, error) {
	if lookaheadDays < 0 {
		return nil, ErrInvalidLookahead
	}

	start := StartOfDay(reference)

	var windowEnd time.Time
	hasWindowEnd := false
	if rule.WindowEnd != nil {
		windowEnd = StartOfDay(rule.WindowEnd.In(reference.Location()))
		hasWindowEnd = true
	}

	dates := make([]time.Time, 0, lookaheadDays+1)
	for i := 0; i <= lookaheadDays; i++ {
		candidate := start.AddDate(0, 0, i)
		if hasWindowEnd && candidate.After(windowEnd) {
			break
		}

		include, err := shouldInclude(rule.Pattern, candidate)
		if err != nil {
			return nil, err
		}
		if include {
			dates = append(dates, candidate)
		}
	}

	return dates, nil
}

func shouldInclude(pattern Pattern, candidate time.Time) (bool, error) {
	switch pattern.Kind {
	case PatternDaily:
		return true, nil
	case PatternWeekly:
		return candidate.Weekday() == pattern.Weekday, nil
	case PatternMonthly:
		return candidate.Day() == pattern.DayOfMonth, nil
	case PatternUnspecified:
		fallthrough
	default:
		return false, ErrInvalidPattern
	}
}

// StartOfDay normalizes a timestamp to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether two timestamps fall on the same calendar date in
// b's location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
