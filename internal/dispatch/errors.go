package dispatch

import "errors"

// Domain errors for the dispatch package.
var (
	// ErrCommandNotFound is returned when a command ID does not exist.
	ErrCommandNotFound = errors.New("dispatch: command not found")

	// ErrInvalidCommand is returned when a command fails validation.
	ErrInvalidCommand = errors.New("dispatch: invalid command")
)
