// Package denylist builds the signed revocation packets that force
// locks to reject otherwise-valid route passes.
//
// Route passes verify offline, so revoking one before its natural
// expiry means pushing a denylist entry out to the field. The Builder
// produces signed add/remove packets, optionally targeted at specific
// locks; the Optimizer advises whether a packet is worth sending at
// all, based on the subject's route pass history and entry expiry.
// Skip decisions only suppress network commands, never the audited
// database record of the revocation.
package denylist
