// Package access resolves who can open which locks and why.
//
// The access model ties together facilities, units, tenancies, locks and
// shared keys. A user reaches a lock either directly (they rent the unit
// the lock is on) or through a shared key (a tenant delegated access to
// them). Both paths are expressed as a Grant, the unit of truth that key
// distribution reconciles and route pass issuance turns into audiences.
package access
