package store

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrConflict signals transactional contention or a lost
	// compare-and-swap; the attempt is safe to retry.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable signals a transient infrastructure failure;
	// safe to retry with backoff.
	ErrUnavailable = errors.New("store unavailable")

	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
