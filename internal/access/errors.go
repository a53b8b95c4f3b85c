package access

import "errors"

// Domain errors for the access package.
var (
	// ErrLockNotFound is returned when a lock ID does not exist.
	ErrLockNotFound = errors.New("access: lock not found")

	// ErrUnitNotFound is returned when a unit ID does not exist.
	ErrUnitNotFound = errors.New("access: unit not found")
)
