package recurrence

import (
	"errors"
	"testing"
	"time"
)

func TestParseClockTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		want    ClockTime
		wantErr bool
	}{
		{name: "morning", value: "09:30", want: ClockTime{Hour: 9, Minute: 30}},
		{name: "midnight", value: "00:00", want: ClockTime{}},
		{name: "last minute", value: "23:59", want: ClockTime{Hour: 23, Minute: 59}},
		{name: "hour out of range", value: "24:00", wantErr: true},
		{name: "minute out of range", value: "10:60", wantErr: true},
		{name: "missing separator", value: "1030", wantErr: true},
		{name: "too short", value: "9:30", wantErr: true},
		{name: "trailing garbage", value: "09:30:00", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseClockTime(tc.value)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidClockTime) {
					t.Fatalf("expected ErrInvalidClockTime, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestClockTimeString(t *testing.T) {
	t.Parallel()

	if got := (ClockTime{Hour: 7, Minute: 5}).String(); got != "07:05" {
		t.Fatalf("expected 07:05, got %s", got)
	}
}

func TestSpan(t *testing.T) {
	t.Parallel()

	date := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	t.Run("same-day span", func(t *testing.T) {
		t.Parallel()

		start, end := Span(date, ClockTime{Hour: 10}, ClockTime{Hour: 11, Minute: 30})
		if !start.Equal(time.Date(2024, time.January, 10, 10, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected start %v", start)
		}
		if !end.Equal(time.Date(2024, time.January, 10, 11, 30, 0, 0, time.UTC)) {
			t.Fatalf("unexpected end %v", end)
		}
	})

	t.Run("overnight span rolls the end to the next day", func(t *testing.T) {
		t.Parallel()

		start, end := Span(date, ClockTime{Hour: 23, Minute: 30}, ClockTime{Hour: 0, Minute: 30})
		if !start.Equal(time.Date(2024, time.January, 10, 23, 30, 0, 0, time.UTC)) {
			t.Fatalf("unexpected start %v", start)
		}
		if !end.Equal(time.Date(2024, time.January, 11, 0, 30, 0, 0, time.UTC)) {
			t.Fatalf("unexpected end %v", end)
		}
	})

	t.Run("equal clocks are treated as a full-day overnight span", func(t *testing.T) {
		t.Parallel()

		start, end := Span(date, ClockTime{Hour: 9}, ClockTime{Hour: 9})
		if got := end.Sub(start); got != 24*time.Hour {
			t.Fatalf("expected 24h span, got %v", got)
		}
	})
}
