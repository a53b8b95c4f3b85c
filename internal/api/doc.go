// Package api is the trigger and operations HTTP surface: dependency
// health, route pass issuance, and the event entry points that drive
// key distribution (tenancy changes, lock discovery, rotation).
//
// Event endpoints acknowledge delivery with 200 even when
// reconciliation fails; failures are captured in distribution row
// state and logs, never bounced back to the event bus. The one
// synchronous conflict is a concurrent rotation, which returns 409.
package api
