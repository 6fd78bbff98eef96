package store

import "errors"

var (
	// ErrInvalidDSN is returned when the DSN is empty.
	ErrInvalidDSN = errors.New("store: invalid or empty DSN")

	// ErrMigrationFailed is returned when applying migrations fails.
	ErrMigrationFailed = errors.New("store: migration failed")

	// ErrConnectionFailed is returned when connection attempts are exhausted.
	ErrConnectionFailed = errors.New("store: connection failed")

	// ErrEmptyBatch is returned by upsert calls given an empty slice, so
	// callers can distinguish a no-op from a write failure.
	ErrEmptyBatch = errors.New("store: empty batch")
)
