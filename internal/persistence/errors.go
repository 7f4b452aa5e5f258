package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a write collides with an existing record,
	// including the (origin template, calendar date) idempotency key.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record breaks a store-level
	// check, such as an inverted time range.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a record references a missing row.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)
