// Package distribution reconciles which device keys live on which
// physical locks.
//
// The Engine reacts to access changes (tenancy change, lock discovery,
// explicit rotation) by diffing a device's desired lock set against
// its tracked distribution rows and enqueuing only the delta as
// ADD_KEY/REVOKE_KEY commands. The Worker drains the pending rows
// against gateways on a schedule, with a bounded retry and exponential
// backoff recorded per row.
//
// Rows are append-audit state: pending_add -> added -> pending_remove
// -> removed, with failed as the dead-letter terminal. A device in
// pending_key flips to active the moment its first key set has fully
// landed.
package distribution
