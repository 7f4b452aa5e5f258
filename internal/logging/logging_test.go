package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/recurrence"
)

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Fatal("expected the context-carried logger back")
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatal("expected nil for a bare context")
	}
}

func TestScopedLogger(t *testing.T) {
	t.Parallel()

	t.Run("prefers the context logger over the base", func(t *testing.T) {
		t.Parallel()

		var fromCtx, fromBase bytes.Buffer
		ctxLogger := slog.New(slog.NewJSONHandler(&fromCtx, nil))
		baseLogger := slog.New(slog.NewJSONHandler(&fromBase, nil))

		ctx := ContextWithLogger(context.Background(), ctxLogger)
		ScopedLogger(ctx, baseLogger, "materializer", "run_cycle").Info("hello")

		if fromCtx.Len() == 0 {
			t.Fatal("expected the context logger to receive the record")
		}
		if fromBase.Len() != 0 {
			t.Fatal("expected the base logger to stay silent")
		}
	})

	t.Run("attaches component and operation attributes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		ScopedLogger(context.Background(), logger, "materializer", "run_cycle", "template_id", "t-1").Info("hello")

		line := buf.String()
		for _, want := range []string{`"component":"materializer"`, `"operation":"run_cycle"`, `"template_id":"t-1"`} {
			if !strings.Contains(line, want) {
				t.Fatalf("expected %s in %s", want, line)
			}
		}
	})
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not found", err: persistence.ErrNotFound, want: "not_found"},
		{name: "wrapped duplicate", err: fmt.Errorf("create: %w", persistence.ErrDuplicate), want: "duplicate"},
		{name: "constraint", err: persistence.ErrConstraintViolation, want: "constraint_violation"},
		{name: "foreign key", err: persistence.ErrForeignKeyViolation, want: "foreign_key_violation"},
		{name: "missing weekday", err: recurrence.ErrMissingWeekday, want: "template_config"},
		{name: "bad clock", err: recurrence.ErrInvalidClockTime, want: "template_config"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "anything else", err: errors.New("boom"), want: "unexpected"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
