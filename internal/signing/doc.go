// Package signing implements the operational Ed25519 key used to sign
// route passes and denylist packets.
//
// The key pair is derived deterministically from a 32-byte seed held in
// configuration. Locks and gateways carry the matching public key in
// firmware, so everything signed here is verifiable offline at the
// facility even when the cloud is unreachable.
//
// Two signature forms are produced:
//   - Detached Ed25519 signatures over canonical JSON (denylist packets)
//   - EdDSA JWTs (route passes)
package signing
