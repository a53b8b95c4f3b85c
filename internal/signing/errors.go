package signing

import "errors"

// Domain-specific errors for signing operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidSeed is returned when the configured key seed is not a
	// hex-encoded 32-byte value.
	ErrInvalidSeed = errors.New("signing: invalid key seed")

	// ErrTokenInvalid is returned when a JWT fails signature or claim
	// validation.
	ErrTokenInvalid = errors.New("signing: token invalid")
)
