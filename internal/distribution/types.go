package distribution

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/blulok/blulok-core/internal/access"
)

// Status is the lifecycle state of a distribution row.
type Status string

// Distribution statuses.
//
// The normal path is pending_add -> added -> pending_remove -> removed.
// failed is reachable from either pending state once retries are
// exhausted. removed and failed are terminal; a renewed need for the
// same (device, target) creates a fresh row.
const (
	StatusPendingAdd    Status = "pending_add"
	StatusAdded         Status = "added"
	StatusPendingRemove Status = "pending_remove"
	StatusRemoved       Status = "removed"
	StatusFailed        Status = "failed"
)

// IsValid checks if the status is a recognised value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingAdd, StatusAdded, StatusPendingRemove, StatusRemoved, StatusFailed:
		return true
	}
	return false
}

// IsPending reports whether the row is waiting on a gateway operation.
func (s Status) IsPending() bool {
	return s == StatusPendingAdd || s == StatusPendingRemove
}

// IsTerminal reports whether the row can never transition again.
func (s Status) IsTerminal() bool {
	return s == StatusRemoved || s == StatusFailed
}

// Distribution tracks one device key on one lock. Rows are audit
// records: they are never deleted, only transitioned.
type Distribution struct {
	ID            string             `json:"id"`
	UserDeviceID  string             `json:"user_device_id"`
	TargetType    access.DeviceClass `json:"target_type"`
	TargetID      string             `json:"target_id"`
	GatewayID     string             `json:"gateway_id"`
	KeyVersion    access.KeyVersion  `json:"key_version"`
	Status        Status             `json:"status"`
	RetryCount    int                `json:"retry_count"`
	Error         string             `json:"error,omitempty"`
	LastAttemptAt *time.Time         `json:"last_attempt_at,omitempty"`
	NextAttemptAt *time.Time         `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// keyMaterialV2 is the command payload for current firmware: the raw
// device public key, verified by the lock during challenge-response.
type keyMaterialV2 struct {
	Version   int    `json:"version"`
	PublicKey string `json:"public_key"`
	UserID    string `json:"user_id"`
}

// keyMaterialV1 is the command payload for legacy firmware, which
// predates device-bound keys and only understands numeric credentials.
// The placeholders are derived cloud-side; V1 locks ignore unknown
// fields.
type keyMaterialV1 struct {
	Version int   `json:"version"`
	KeyCode int64 `json:"key_code"`
	SlotID  int64 `json:"slot_id"`
}

// buildKeyPayload renders protocol-specific key material for a command.
func buildKeyPayload(version access.KeyVersion, publicKey, userID string) (json.RawMessage, error) {
	switch version {
	case access.KeyV2:
		return json.Marshal(keyMaterialV2{
			Version:   2,
			PublicKey: publicKey,
			UserID:    userID,
		})
	case access.KeyV1:
		return json.Marshal(keyMaterialV1{
			Version: 1,
			KeyCode: legacyKeyCode(userID),
			SlotID:  0,
		})
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKeyVersion, version)
	}
}

// legacyKeyCode derives a stable numeric credential for V1 locks from
// the user id. V1 hardware caps codes at 8 digits.
func legacyKeyCode(userID string) int64 {
	var code int64
	for _, r := range userID {
		code = (code*31 + int64(r)) % 100000000
	}
	if code < 0 {
		code = -code
	}
	return code
}
