package dispatch

import (
	"encoding/json"
	"time"
)

// CommandType identifies what a gateway should do with a command.
type CommandType string

// Command types.
const (
	// CommandAddKey installs a device key on a lock.
	CommandAddKey CommandType = "ADD_KEY"

	// CommandRevokeKey removes a device key from a lock.
	CommandRevokeKey CommandType = "REVOKE_KEY"
)

// IsValid checks if the command type is a recognised value.
func (t CommandType) IsValid() bool {
	return t == CommandAddKey || t == CommandRevokeKey
}

// Status is the delivery state of a queued command.
type Status string

// Command statuses.
const (
	// StatusQueued means the command awaits dispatch to its gateway.
	StatusQueued Status = "queued"

	// StatusSent means the command was published to the gateway topic.
	StatusSent Status = "sent"

	// StatusFailed means dispatch gave up after repeated publish failures.
	StatusFailed Status = "failed"
)

// Command is a typed unit of work for a facility gateway. Commands are
// durable: they survive process restarts in the dispatch_queue table
// and are drained to MQTT by the Drainer.
type Command struct {
	ID         string          `json:"id"`
	FacilityID string          `json:"facility_id"`
	GatewayID  string          `json:"gateway_id"`
	DeviceID   string          `json:"device_id"`
	Type       CommandType     `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     Status          `json:"status"`
	Attempts   int             `json:"attempts"`
	CreatedAt  time.Time       `json:"created_at"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
}
