// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Input errors.
	ErrInvalidInput = errors.New("invalid input")

	// Sync errors.
	ErrNotAuthenticated = errors.New("no authenticated user")
	ErrOffline          = errors.New("network unreachable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError reports a required field that is missing or malformed at creation time.
// Nothing is written when it is returned.
type ValidationError struct {
	Err   error
	Field string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %v", e.Err)
	}
	return fmt.Sprintf("validation failed for %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// StorageError reports a local persistence failure (I/O, constraint violation, corruption).
type StorageError struct {
	Err error
	Op  string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError. A nil err yields nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// SyncItemError reports that a single record failed to push or pull.
// It is logged and counted, never surfaced to the user.
type SyncItemError struct {
	Err   error
	Phase string
	ID    string
}

func (e *SyncItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.ID, e.Err)
}

func (e *SyncItemError) Unwrap() error {
	return e.Err
}

// RemoteDeleteError reports a failed best-effort remote deletion.
// The local delete it followed has already been committed.
type RemoteDeleteError struct {
	Err error
	ID  string
}

func (e *RemoteDeleteError) Error() string {
	return fmt.Sprintf("remote delete %s: %v", e.ID, e.Err)
}

func (e *RemoteDeleteError) Unwrap() error {
	return e.Err
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
