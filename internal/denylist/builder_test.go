package denylist

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/blulok/blulok-core/internal/signing"
)

const testSeed = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"

func newTestBuilder(t *testing.T) (*Builder, *signing.Signer) {
	t.Helper()
	signer, err := signing.NewSigner(testSeed)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return NewBuilder(signer), signer
}

func int64Ptr(v int64) *int64 { return &v }

func TestBuildAdd(t *testing.T) {
	builder, signer := newTestBuilder(t)

	entries := []Entry{
		{Sub: "user-1", Exp: int64Ptr(1770000000)},
		{Sub: "user-2"}, // permanent
	}

	packet, err := builder.BuildAdd(entries, nil)
	if err != nil {
		t.Fatalf("BuildAdd() error = %v", err)
	}

	var p payload
	if err := json.Unmarshal(packet.Payload, &p); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if p.Type != PacketTypeAdd {
		t.Errorf("Type = %q, want %q", p.Type, PacketTypeAdd)
	}
	if len(p.Entries) != 2 {
		t.Fatalf("Entries length = %d, want 2", len(p.Entries))
	}
	if p.Entries[0].Exp == nil || *p.Entries[0].Exp != 1770000000 {
		t.Errorf("Entries[0].Exp = %v, want 1770000000", p.Entries[0].Exp)
	}
	if p.Entries[1].Exp != nil {
		t.Errorf("Entries[1].Exp = %v, want nil (permanent)", p.Entries[1].Exp)
	}
	if p.Targets != nil {
		t.Errorf("Targets = %v, want nil for system-wide packet", p.Targets)
	}
	if p.IssuedAt == 0 {
		t.Error("IssuedAt not set")
	}

	// Detached signature verifies over the exact payload bytes
	sig, err := base64.StdEncoding.DecodeString(packet.Signature)
	if err != nil {
		t.Fatalf("decoding signature: %v", err)
	}
	if !signer.Verify(packet.Payload, sig) {
		t.Error("signature does not verify over payload")
	}
}

func TestBuildAdd_Targeted(t *testing.T) {
	builder, _ := newTestBuilder(t)

	packet, err := builder.BuildAdd([]Entry{{Sub: "user-1"}}, []string{"lock-1", "lock-2"})
	if err != nil {
		t.Fatalf("BuildAdd() error = %v", err)
	}

	var p payload
	if err := json.Unmarshal(packet.Payload, &p); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if p.Targets == nil || len(p.Targets.DeviceIDs) != 2 {
		t.Fatalf("Targets = %+v, want 2 device ids", p.Targets)
	}
	if p.Targets.DeviceIDs[0] != "lock-1" {
		t.Errorf("Targets.DeviceIDs[0] = %q, want %q", p.Targets.DeviceIDs[0], "lock-1")
	}
}

func TestBuildRemove(t *testing.T) {
	builder, _ := newTestBuilder(t)

	packet, err := builder.BuildRemove([]Entry{{Sub: "user-1"}}, nil)
	if err != nil {
		t.Fatalf("BuildRemove() error = %v", err)
	}

	var p payload
	if err := json.Unmarshal(packet.Payload, &p); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if p.Type != PacketTypeRemove {
		t.Errorf("Type = %q, want %q", p.Type, PacketTypeRemove)
	}
}

func TestBuild_Validation(t *testing.T) {
	builder, _ := newTestBuilder(t)

	if _, err := builder.BuildAdd(nil, nil); !errors.Is(err, ErrNoEntries) {
		t.Errorf("BuildAdd(nil) error = %v, want ErrNoEntries", err)
	}
	if _, err := builder.BuildAdd([]Entry{{Sub: ""}}, nil); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("BuildAdd(empty sub) error = %v, want ErrInvalidEntry", err)
	}
	if _, err := builder.BuildRemove(nil, nil); !errors.Is(err, ErrNoEntries) {
		t.Errorf("BuildRemove(nil) error = %v, want ErrNoEntries", err)
	}
}
