// Package routepass issues the short-lived signed tokens a phone
// presents to lock firmware.
//
// A route pass is an EdDSA JWT covering everything its holder can open:
// one audience per grant, the device public key for proof-of-possession,
// and an optional weekly schedule. Locks verify passes entirely offline
// against the operational public key baked into firmware, which is why
// passes are short-lived and why revocation is handled separately by the
// denylist.
//
// Metadata for every issued pass (token ID, device, expiry) is persisted
// so the denylist builder can bound entry lifetimes.
package routepass
