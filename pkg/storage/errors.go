package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when an upload does not exist.
	ErrNotFound = errors.New("upload not found")

	// ErrConflict is returned when an upload with the given ID already exists.
	ErrConflict = errors.New("upload already exists")
)
