// Package entry implements the food-diary entry use cases: screening and
// sanitizing user text before it is persisted, and scoping reads to the owner.
package entry

import "errors"

// Sentinel errors for entry use case operations.
var (
	// ErrEntryNotFound indicates that the entry does not exist for this user.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrInvalidEntryID indicates a non-positive entry ID.
	ErrInvalidEntryID = errors.New("invalid entry ID")

	// ErrUserRequired indicates a call without an authenticated user.
	ErrUserRequired = errors.New("user is required")
)
