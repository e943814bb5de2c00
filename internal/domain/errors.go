package domain

import "errors"

var (
	// ErrValidation marks invalid input or malformed domain data.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing record or archive file.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected by current state, e.g. retries exhausted.
	ErrConflict = errors.New("conflict")
	// ErrConfiguration marks missing or incomplete settings; the operation was not started.
	ErrConfiguration = errors.New("configuration error")
	// ErrConnectivity marks a failure to reach an external system (mailbox, transport).
	ErrConnectivity = errors.New("connectivity error")
)
