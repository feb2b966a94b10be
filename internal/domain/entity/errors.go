package entity

import "errors"

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entry does not exist or belongs
	// to another user.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")
)
