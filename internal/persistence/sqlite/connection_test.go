package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: sql.ErrNoRows, want: persistence.ErrNotFound},
		{name: "unique", err: errors.New("constraint failed: UNIQUE constraint failed: meeting_instances.id"), want: persistence.ErrDuplicate},
		{name: "foreign key", err: errors.New("constraint failed: FOREIGN KEY constraint failed"), want: persistence.ErrForeignKeyViolation},
		{name: "check", err: errors.New("constraint failed: CHECK constraint failed: meeting_type"), want: persistence.ErrConstraintViolation},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := MapError(tc.err)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		t.Parallel()

		err := errors.New("disk I/O error")
		if got := MapError(err); got != err {
			t.Fatalf("expected error to pass through, got %v", got)
		}
	})
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	fastRetry := RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	t.Run("retries locked errors until success", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		err := WithRetry(context.Background(), fastRetry, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Fatalf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		err := WithRetry(context.Background(), fastRetry, func() error {
			attempts++
			return errors.New("database is locked")
		})
		if err == nil {
			t.Fatal("expected an error after exhausting retries")
		}
		if attempts != fastRetry.MaxRetries+1 {
			t.Fatalf("expected %d attempts, got %d", fastRetry.MaxRetries+1, attempts)
		}
	})

	t.Run("constraint violations are not retried", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		err := WithRetry(context.Background(), fastRetry, func() error {
			attempts++
			return fmt.Errorf("constraint failed: UNIQUE constraint failed: meeting_instances.id")
		})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		if attempts != 1 {
			t.Fatalf("expected a single attempt, got %d", attempts)
		}
	})

	t.Run("cancellation stops the retry loop", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := WithRetry(ctx, fastRetry, func() error {
			return errors.New("database is locked")
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
