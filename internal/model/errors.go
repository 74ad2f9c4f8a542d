// Package model provides core data types for booknotes.
package model

import "errors"

// Error types for journal operations
var (
	ErrBookNotFound     = errors.New("book not found")
	ErrNoteNotFound     = errors.New("note file not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrMirrorStale      = errors.New("note mirror is stale")
	ErrServerRunning    = errors.New("server already running")
)
