package distribution

import "errors"

var (
	// ErrRotationInProgress indicates a concurrent rotation request
	// for a device that is already rotating.
	ErrRotationInProgress = errors.New("distribution: rotation already in progress")

	// ErrDistributionNotFound indicates the distribution row does not exist.
	ErrDistributionNotFound = errors.New("distribution: not found")

	// ErrUnknownKeyVersion indicates an unrecognised key protocol version.
	ErrUnknownKeyVersion = errors.New("distribution: unknown key version")
)
