package denylist

import "errors"

// Domain errors for the denylist package.
var (
	// ErrNoEntries is returned when building a packet with no entries.
	ErrNoEntries = errors.New("denylist: no entries")

	// ErrInvalidEntry is returned when an entry fails validation.
	ErrInvalidEntry = errors.New("denylist: invalid entry")
)
