package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks caller-fixable input errors. Nothing is mutated.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageUnavailable marks failures of the storage collaborator.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConflictingWriteLost means a concurrent write to the same user and
	// room won the race. The caller may retry.
	ErrConflictingWriteLost = errors.New("conflicting write lost")
	ErrNotFound             = errors.New("not found")
)

// InputError describes a rejected field.
type InputError struct {
	Field  string
	Reason string
}

// InvalidInput builds an *InputError.
func InvalidInput(field, format string, args ...interface{}) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// StorageError wraps a driver error from the storage collaborator.
type StorageError struct {
	Op  string
	Err error
}

// Storage wraps err as a *StorageError. nil stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}
