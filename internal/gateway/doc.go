// Package gateway talks to facility gateways over MQTT to install and
// remove device keys on physical locks.
//
// Each operation is a request/acknowledge exchange: the service
// publishes a correlated command on the gateway's facility-scoped
// topic and blocks until the matching ack arrives or the timeout
// elapses. Callers treat every error as retryable; the key
// distribution worker owns the retry policy.
package gateway
