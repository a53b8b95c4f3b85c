package signing

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Deterministic test seed (RFC 8032 test vector seed).
const testSeed = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(testSeed)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return s
}

func TestNewSigner(t *testing.T) {
	tests := []struct {
		name    string
		seed    string
		wantErr bool
	}{
		{"valid seed", testSeed, false},
		{"empty seed", "", true},
		{"not hex", strings.Repeat("zz", 32), true},
		{"too short", "9d61b19d", true},
		{"too long", testSeed + "00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigner(tt.seed)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSigner() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("NewSigner() error = %v, want ErrInvalidSeed", err)
			}
		})
	}
}

func TestSigner_Deterministic(t *testing.T) {
	a := newTestSigner(t)
	b := newTestSigner(t)

	if a.PublicKeyHex() != b.PublicKeyHex() {
		t.Error("same seed produced different public keys")
	}
}

func TestSign_Verify(t *testing.T) {
	s := newTestSigner(t)
	payload := []byte(`{"entries":[{"sub":"user-1"}]}`)

	sig := s.Sign(payload)
	if !s.Verify(payload, sig) {
		t.Error("Verify() = false for valid signature")
	}
	if s.Verify([]byte("tampered"), sig) {
		t.Error("Verify() = true for tampered payload")
	}
}

func TestSignBase64(t *testing.T) {
	s := newTestSigner(t)

	sig := s.SignBase64([]byte("payload"))
	if sig == "" {
		t.Fatal("SignBase64() returned empty string")
	}
	// Ed25519 signatures are 64 bytes, 88 chars in base64
	if len(sig) != 88 {
		t.Errorf("SignBase64() length = %d, want 88", len(sig))
	}
}

// stampedClaims is a minimal claim set for round-trip tests.
type stampedClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

func (c *stampedClaims) SetValidity(issuedAt, expiresAt *jwt.NumericDate) {
	c.IssuedAt = issuedAt
	c.ExpiresAt = expiresAt
}

func TestSignJWT_RoundTrip(t *testing.T) {
	s := newTestSigner(t)

	claims := &stampedClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Scope:            "unlock",
	}

	token, err := s.SignJWT(claims, 15*time.Minute)
	if err != nil {
		t.Fatalf("SignJWT() error = %v", err)
	}

	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatal("SignJWT() did not stamp validity window")
	}

	var parsed stampedClaims
	if err := s.VerifyJWT(token, &parsed); err != nil {
		t.Fatalf("VerifyJWT() error = %v", err)
	}
	if parsed.Subject != "user-1" {
		t.Errorf("Subject = %q, want %q", parsed.Subject, "user-1")
	}
	if parsed.Scope != "unlock" {
		t.Errorf("Scope = %q, want %q", parsed.Scope, "unlock")
	}
}

func TestVerifyJWT_Expired(t *testing.T) {
	s := newTestSigner(t)

	claims := &stampedClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	token, err := s.SignJWT(claims, -time.Minute)
	if err != nil {
		t.Fatalf("SignJWT() error = %v", err)
	}

	var parsed stampedClaims
	if err := s.VerifyJWT(token, &parsed); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifyJWT() error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyJWT_WrongKey(t *testing.T) {
	s := newTestSigner(t)
	other, err := NewSigner(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	claims := &stampedClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	token, err := other.SignJWT(claims, time.Minute)
	if err != nil {
		t.Fatalf("SignJWT() error = %v", err)
	}

	var parsed stampedClaims
	if err := s.VerifyJWT(token, &parsed); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifyJWT() error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyJWT_Tampered(t *testing.T) {
	s := newTestSigner(t)

	claims := &stampedClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	token, err := s.SignJWT(claims, time.Minute)
	if err != nil {
		t.Fatalf("SignJWT() error = %v", err)
	}

	tampered := token[:len(token)-4] + "AAAA"
	var parsed stampedClaims
	if err := s.VerifyJWT(tampered, &parsed); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifyJWT() error = %v, want ErrTokenInvalid", err)
	}
}
