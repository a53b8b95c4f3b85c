// Package device manages the registry of enrolled user devices.
//
// Each user may enrol multiple devices (phones). A device carries an
// asymmetric key pair generated on-device; only the public half ever
// reaches the cloud. The registry tracks enrolment and lifecycle status,
// and feeds key distribution with the set of devices that should hold
// keys on physical locks.
package device
