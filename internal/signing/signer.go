package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// seedLen is the required length of an Ed25519 seed in bytes.
const seedLen = ed25519.SeedSize

// TimestampedClaims is implemented by claim sets whose validity window
// the signer stamps at signing time.
type TimestampedClaims interface {
	jwt.Claims
	SetValidity(issuedAt, expiresAt *jwt.NumericDate)
}

// Signer holds the operational Ed25519 key pair and signs both raw
// payloads (detached signatures for denylist packets) and JWTs
// (route passes).
//
// The zero value is not usable; construct with NewSigner.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner derives an Ed25519 key pair from a hex-encoded 32-byte seed.
//
// The seed comes from config (BLULOK_OPS_KEY_SEED) and never leaves this
// package. Returns ErrInvalidSeed if the seed is malformed.
func NewSigner(seedHex string) (*Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if len(seed) != seedLen {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, len(seed), seedLen)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, ErrInvalidSeed
	}

	return &Signer{priv: priv, pub: pub}, nil
}

// Sign produces a detached Ed25519 signature over payload.
func (s *Signer) Sign(payload []byte) []byte {
	return ed25519.Sign(s.priv, payload)
}

// SignBase64 produces a detached signature encoded as standard base64.
// This is the wire encoding used in denylist packets.
func (s *Signer) SignBase64(payload []byte) string {
	return base64.StdEncoding.EncodeToString(s.Sign(payload))
}

// Verify reports whether sig is a valid signature over payload by this
// signer's key pair.
func (s *Signer) Verify(payload, sig []byte) bool {
	return ed25519.Verify(s.pub, payload, sig)
}

// PublicKey returns the raw public key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.pub
}

// PublicKeyHex returns the hex-encoded public key for distribution to
// gateways and firmware.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.pub)
}

// SignJWT signs a claim set as an EdDSA JWT valid for ttl from now.
//
// The issued-at and expiry timestamps are stamped here so every token
// from this signer carries a consistent validity window.
func (s *Signer) SignJWT(claims TimestampedClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.SetValidity(jwt.NewNumericDate(now), jwt.NewNumericDate(now.Add(ttl)))

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyJWT validates an EdDSA JWT against this signer's public key and
// unmarshals its payload into claims.
// It checks the signature, expiry, and signing method.
func (s *Signer) VerifyJWT(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return ErrTokenInvalid
	}

	return nil
}
