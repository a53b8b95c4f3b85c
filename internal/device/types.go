package device

import "time"

// Status represents the lifecycle state of a registered user device.
type Status string

// Device statuses.
const (
	// StatusPendingKey means the device is enrolled but its key has not
	// yet landed on every lock it needs. Key distribution flips the
	// device to active once all pending additions complete.
	StatusPendingKey Status = "pending_key"

	// StatusActive means the device's key material is in place and it
	// may be issued route passes.
	StatusActive Status = "active"

	// StatusRevoked means the device is permanently retired. Its keys
	// are removed from locks and it can never be reactivated.
	StatusRevoked Status = "revoked"
)

// IsValid checks if the status is a recognised value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingKey, StatusActive, StatusRevoked:
		return true
	}
	return false
}

// IsReconcilable reports whether devices in this status should hold
// keys on the locks they have access to.
func (s Status) IsReconcilable() bool {
	return s == StatusPendingKey || s == StatusActive
}

// UserDevice is a phone (or other credential carrier) enrolled by a user.
//
// A user may have several devices; each carries its own key pair. The
// cloud only ever stores the public half. Devices without a public key
// are mid-enrolment; distribution rows for them fail rather than retry.
type UserDevice struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	PublicKey string    `json:"public_key,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPublicKey reports whether enrolment completed and the device
// public key is available for distribution.
func (d *UserDevice) HasPublicKey() bool {
	return d.PublicKey != ""
}
