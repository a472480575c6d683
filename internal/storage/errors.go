package storage

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.New("storage: duplicate key")

	// ErrConflict indicates any other constraint violation surfaced by the
	// store (check constraints, foreign keys).
	ErrConflict = errors.New("storage: constraint violation")

	// ErrInvalidInput indicates malformed input rejected before any write.
	ErrInvalidInput = errors.New("storage: invalid input")
)
