package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid or missing connector
	// configuration. Raised at construction, before any item is
	// processed, and never swallowed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown connector type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSourceClosed indicates the connector has been closed.
	ErrSourceClosed = errors.New("source closed")

	// ErrRateLimited indicates the upstream API rate limit was
	// exceeded and retries were exhausted.
	ErrRateLimited = errors.New("rate limited")
)
