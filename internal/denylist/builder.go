package denylist

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/blulok/blulok-core/internal/signing"
)

// Packet types carried in the payload.
const (
	PacketTypeAdd    = "denylist_add"
	PacketTypeRemove = "denylist_remove"
)

// Entry is one revocation: a denylisted subject and an optional expiry.
// A nil Exp denotes a permanent entry.
type Entry struct {
	Sub string `json:"sub"`
	Exp *int64 `json:"exp"`
}

// Targets restricts packet delivery to specific locks. When absent the
// packet is system-wide: every device the operations key can reach.
type Targets struct {
	DeviceIDs []string `json:"device_ids"`
}

// Packet is a signed denylist update ready for gateway dispatch. The
// payload bytes are exactly what was signed; gateways and locks verify
// the detached signature before applying.
type Packet struct {
	Payload   []byte `json:"payload"`
	Signature string `json:"signature"`
}

// payload is the wire shape of a denylist update.
type payload struct {
	Type     string   `json:"type"`
	Entries  []Entry  `json:"entries"`
	Targets  *Targets `json:"targets,omitempty"`
	IssuedAt int64    `json:"issued_at"`
}

// Builder constructs signed denylist add/remove packets.
type Builder struct {
	signer *signing.Signer

	// now is swappable for tests.
	now func() time.Time
}

// NewBuilder creates a denylist packet builder.
func NewBuilder(signer *signing.Signer) *Builder {
	return &Builder{
		signer: signer,
		now:    time.Now,
	}
}

// BuildAdd builds a signed packet denylisting the given entries.
//
// If targetDeviceIDs is non-empty the packet carries a targets field
// restricting delivery to those locks (partial revocation); otherwise
// it is system-wide.
func (b *Builder) BuildAdd(entries []Entry, targetDeviceIDs []string) (*Packet, error) {
	return b.build(PacketTypeAdd, entries, targetDeviceIDs)
}

// BuildRemove builds a signed packet lifting the given entries.
func (b *Builder) BuildRemove(entries []Entry, targetDeviceIDs []string) (*Packet, error) {
	return b.build(PacketTypeRemove, entries, targetDeviceIDs)
}

func (b *Builder) build(packetType string, entries []Entry, targetDeviceIDs []string) (*Packet, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	for _, e := range entries {
		if e.Sub == "" {
			return nil, fmt.Errorf("%w: empty subject", ErrInvalidEntry)
		}
	}

	p := payload{
		Type:     packetType,
		Entries:  entries,
		IssuedAt: b.now().Unix(),
	}
	if len(targetDeviceIDs) > 0 {
		p.Targets = &Targets{DeviceIDs: targetDeviceIDs}
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshalling denylist payload: %w", err)
	}

	return &Packet{
		Payload:   raw,
		Signature: b.signer.SignBase64(raw),
	}, nil
}
