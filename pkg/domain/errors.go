package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a site, record, specification, note, issue or
// report lookup misses.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrValidation reports a missing or malformed input before any mutation was
// attempted.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// ErrLocked is returned when the store could not be acquired within the
// configured lock wait.
type ErrLocked struct {
	Op  string
	Err error
}

func (e ErrLocked) Error() string {
	return fmt.Sprintf("%s: store locked: %v", e.Op, e.Err)
}

func (e ErrLocked) Unwrap() error { return e.Err }

// ErrTransactionFailed wraps a storage error that aborted a transaction. The
// transaction was rolled back.
type ErrTransactionFailed struct {
	Op  string
	Err error
}

func (e ErrTransactionFailed) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e ErrTransactionFailed) Unwrap() error { return e.Err }

// Journal errors.
var (
	ErrUndoUnavailable = errors.New("nothing to undo")
	ErrRedoUnavailable = errors.New("nothing to redo")
)

// IsNotFound reports whether err carries an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// IsValidation reports whether err carries an ErrValidation.
func IsValidation(err error) bool {
	var v ErrValidation
	return errors.As(err, &v)
}

// IsLocked reports whether err carries an ErrLocked.
func IsLocked(err error) bool {
	var l ErrLocked
	return errors.As(err, &l)
}

// IsTransactionFailed reports whether err carries an ErrTransactionFailed.
func IsTransactionFailed(err error) bool {
	var t ErrTransactionFailed
	return errors.As(err, &t)
}
