package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when the submission itself is missing
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a reading lookup matches nothing
	ErrNotFound = errors.New("meter reading not found")

	// ErrPersistence matches every PersistenceError via errors.Is
	ErrPersistence = errors.New("persistence failure")
)

// PersistenceError wraps a storage failure that aborted a batch.
// The batch transaction has been rolled back when this is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports ErrPersistence as a match so callers need not use errors.As
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
