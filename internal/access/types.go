package access

import "fmt"

// TargetType identifies what grants a device access to a lock.
type TargetType string

// Target types.
const (
	// TargetLock is direct access through a unit tenancy.
	TargetLock TargetType = "lock"

	// TargetSharedKey is delegated access through a share from the
	// lock's tenant.
	TargetSharedKey TargetType = "shared_key"
)

// IsValid checks if the target type is a recognised value.
func (t TargetType) IsValid() bool {
	return t == TargetLock || t == TargetSharedKey
}

// DeviceClass is the kind of lock hardware behind a gateway.
type DeviceClass string

// Device classes.
const (
	// ClassBluLok is a unit door lock.
	ClassBluLok DeviceClass = "blulok"

	// ClassAccessControl is a facility entry point (gate, elevator,
	// exterior door).
	ClassAccessControl DeviceClass = "access_control"
)

// IsValid checks if the device class is a recognised value.
func (c DeviceClass) IsValid() bool {
	return c == ClassBluLok || c == ClassAccessControl
}

// KeyVersion is the lock firmware key scheme generation.
type KeyVersion int

// Key scheme generations.
const (
	// KeyV1 is the legacy numeric-credential scheme. V1 locks cannot
	// hold device public keys.
	KeyV1 KeyVersion = 1

	// KeyV2 is the public-key scheme used by current firmware.
	KeyV2 KeyVersion = 2
)

// Lock is a physical lock installed on a storage unit.
type Lock struct {
	ID          string      `json:"id"`
	UnitID      string      `json:"unit_id"`
	FacilityID  string      `json:"facility_id"`
	GatewayID   string      `json:"gateway_id"`
	Name        string      `json:"name,omitempty"`
	DeviceClass DeviceClass `json:"device_type"`
	KeyVersion  KeyVersion  `json:"key_version"`
}

// SharedKey is a delegation of lock access from a tenant to another user.
type SharedKey struct {
	ID           string `json:"id"`
	OwnerID      string `json:"owner_id"`
	SharedWithID string `json:"shared_with_id"`
	LockID       string `json:"lock_id"`
	Status       string `json:"status"`
}

// Grant is one reason a user may open a lock: either a tenancy on the
// lock's unit or an active share from the tenant. The pair
// (TargetType, TargetID) is the identity key distribution reconciles
// against.
type Grant struct {
	Lock       Lock       `json:"lock"`
	TargetType TargetType `json:"target_type"`
	TargetID   string     `json:"target_id"`

	// OwnerID is the sharing tenant for shared_key grants, empty for
	// direct lock grants.
	OwnerID string `json:"owner_id,omitempty"`
}

// Audience returns the route pass audience string for this grant.
//
// Direct grants use "lock:{lockId}"; shared grants use
// "shared_key:{ownerId}:{lockId}" so firmware can verify the share chain.
func (g Grant) Audience() string {
	if g.TargetType == TargetSharedKey {
		return fmt.Sprintf("shared_key:%s:%s", g.OwnerID, g.Lock.ID)
	}
	return fmt.Sprintf("lock:%s", g.Lock.ID)
}

// Audiences maps a set of grants to their audience strings, preserving order.
func Audiences(grants []Grant) []string {
	audiences := make([]string, 0, len(grants))
	for _, g := range grants {
		audiences = append(audiences, g.Audience())
	}
	return audiences
}
