package divelog

import "codeberg.org/mutker/unabara/internal/errors"

const (
	// ErrIO is returned when the log file cannot be opened or read.
	ErrIO = errors.ErrIO
	// ErrFormat covers unsupported extensions and malformed documents.
	ErrFormat = errors.ErrFormat
	// ErrNotFound is returned when no dive, or not the requested dive, exists.
	ErrNotFound = errors.ErrResourceNotFound
	// ErrBusy is returned when an import is already running on the importer.
	ErrBusy = errors.ErrResourceBusy
	// ErrCanceled is returned when the caller's context ends mid-import.
	ErrCanceled = errors.ErrCanceled
)
