package errors

import "errors"

var (
	ErrNotFound = errors.New("borrow record not found")

	ErrInvalidID = errors.New("invalid borrow record ID format")

	// ErrNotPending is returned when an approval loses the compare-and-set
	// on the pending status.
	ErrNotPending = errors.New("borrow record is not pending")

	ErrLockHeld = errors.New("book lock already held")
)
