package repository

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write violated a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrRetryable indicates a transient transaction failure (serialization
	// failure, deadlock, busy database) that may succeed when re-run.
	ErrRetryable = errors.New("transaction retryable")
)
