package store

import "errors"

var (
	// ErrNotFound is returned by every backend when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("conflict")
)
