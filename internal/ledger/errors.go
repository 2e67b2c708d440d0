package ledger

import "errors"

// Store errors.
var (
	// ErrNotFound is returned when a requested attempt does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting an attempt whose id
	// already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
