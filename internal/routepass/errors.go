package routepass

import "errors"

// Domain errors for the routepass package.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrNoAccess is returned when a user has nothing they can open,
	// so there is no audience to issue a pass for.
	ErrNoAccess = errors.New("routepass: user has no accessible locks")

	// ErrDeviceNotActive is returned when the requesting device is
	// inactive or revoked.
	ErrDeviceNotActive = errors.New("routepass: device not active")

	// ErrDeviceMissingKey is returned when the device has not completed
	// key enrolment.
	ErrDeviceMissingKey = errors.New("routepass: device has no public key")

	// ErrDeviceOwnership is returned when the device does not belong to
	// the requesting user.
	ErrDeviceOwnership = errors.New("routepass: device does not belong to user")

	// ErrInvalidSchedule is returned when a schedule entry fails validation.
	ErrInvalidSchedule = errors.New("routepass: invalid schedule")

	// ErrInvalidClaims is returned when a claim set is incomplete.
	ErrInvalidClaims = errors.New("routepass: invalid claims")

	// ErrPassNotFound is returned when pass metadata does not exist.
	ErrPassNotFound = errors.New("routepass: pass not found")
)
