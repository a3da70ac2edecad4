// Package apperr defines sentinel errors shared across the application.
package apperr

import "errors"

var (
	// ErrNotFound indicates the backing document does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrSkip marks an event a task deliberately ignored (missing field,
	// wrong kind, wrong collection). It is swallowed at the dispatch
	// boundary and never surfaces as a failure.
	ErrSkip = errors.New("event skipped")
)
