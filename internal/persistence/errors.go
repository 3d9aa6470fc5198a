package persistence

import "errors"

var (
	// ErrNotFound is returned when an update or delete targets a record that does not exist.
	// Lookups report absence with a nil result instead.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a write fails a CHECK or NOT NULL constraint
	// or when required identifiers are missing.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a write references a missing parent row.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)
