package errors

import "errors"

var (
	ErrNotFound = errors.New("book not found")

	ErrInvalidID = errors.New("invalid book ID format")

	ErrDuplicateISBN = errors.New("book with this ISBN already exists")

	// ErrStatusConflict is returned by compare-and-set writes when the book
	// is no longer in the expected status.
	ErrStatusConflict = errors.New("book status changed concurrently")
)
