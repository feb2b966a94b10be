// Package validation holds the error shape shared by every field validator.
package validation

import (
	"fmt"
	"strings"
)

// ValidationError is a single human-readable rule failure for one field.
// Validators return these as values; they are never raised as panics.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements error so handlers can wrap a failure when convenient.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Errors is an ordered collection of failures.
type Errors []ValidationError

// Add appends a failure.
func (e *Errors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// Empty reports whether no failure was recorded.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Error joins every failure, so Errors can be returned as an error.
func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil when empty, otherwise e as an error.
func (e Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}
