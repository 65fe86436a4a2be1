package errors

import (
	"errors"
	"fmt"
)

// DuplicateBookError is returned when a book with the same catalog id is already stored.
type DuplicateBookError struct {
	ExternalID string
}

func (e *DuplicateBookError) Error() string {
	return fmt.Sprintf("book already exists (goodreads_id=%s)", e.ExternalID)
}

// NewDuplicateBookError creates a DuplicateBookError for externalID.
func NewDuplicateBookError(externalID string) *DuplicateBookError {
	return &DuplicateBookError{ExternalID: externalID}
}

// IsDuplicateBookError reports whether err is a DuplicateBookError (even when wrapped).
func IsDuplicateBookError(err error) bool {
	var dupErr *DuplicateBookError
	return errors.As(err, &dupErr)
}

// DatabaseError wraps a failure of the local store.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// NewDatabaseError wraps err with the operation that failed.
func NewDatabaseError(op string, err error) *DatabaseError {
	return &DatabaseError{Op: op, Err: err}
}

// IsDatabaseError reports whether err is a DatabaseError (even when wrapped).
func IsDatabaseError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr)
}

// InvalidRecordError is returned when a record cannot be stored as given,
// before any database work starts.
type InvalidRecordError struct {
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return "invalid ingest record: " + e.Reason
}

// NewInvalidRecordError creates an InvalidRecordError.
func NewInvalidRecordError(reason string) *InvalidRecordError {
	return &InvalidRecordError{Reason: reason}
}

// IsInvalidRecordError reports whether err is an InvalidRecordError (even when wrapped).
func IsInvalidRecordError(err error) bool {
	var recErr *InvalidRecordError
	return errors.As(err, &recErr)
}
