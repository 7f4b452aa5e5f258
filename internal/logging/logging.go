package logging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/recurrence"
)

type contextKey struct{}

// ContextWithLogger returns a derived context that carries the provided logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger previously attached to the context.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}

// ScopedLogger resolves the effective logger for a component operation,
// preferring a context-carried logger over the component's own, and attaches
// the component and operation attributes.
func ScopedLogger(ctx context.Context, base *slog.Logger, component, operation string, attrs ...any) *slog.Logger {
	logger := FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"component", component}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel errors to a stable label for log filtering.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return "not_found"
	case errors.Is(err, persistence.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, persistence.ErrConstraintViolation):
		return "constraint_violation"
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return "foreign_key_violation"
	case errors.Is(err, recurrence.ErrInvalidPattern),
		errors.Is(err, recurrence.ErrMissingWeekday),
		errors.Is(err, recurrence.ErrMissingMonthDay),
		errors.Is(err, recurrence.ErrInvalidClockTime):
		return "template_config"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "unexpected"
}
