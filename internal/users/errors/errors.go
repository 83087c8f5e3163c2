package errors

import "errors"

var (
	ErrNotFound = errors.New("user not found")

	ErrInvalidID = errors.New("invalid user ID format")

	ErrDuplicateEmail = errors.New("user with this email already exists")

	ErrSessionNotFound = errors.New("session not found or expired")
)
