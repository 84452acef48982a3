package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrConflict = errors.New("reservation dates overlap with an existing reservation")

	ErrInvalidRange = errors.New("end date must be after start date")

	ErrLockHeld = errors.New("reservation lock is held by another writer")
)
