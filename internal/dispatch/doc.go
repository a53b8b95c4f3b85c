// Package dispatch provides the durable command queue between the key
// distribution engine and facility gateways.
//
// Key management commands (ADD_KEY, REVOKE_KEY) are enqueued in SQLite
// alongside the distribution rows they belong to, so a command and its
// tracking row commit or fail together. A Drainer runs on an interval
// and publishes queued commands to per-gateway MQTT topics, marking
// them sent on success and retrying on failure up to a small ceiling.
package dispatch
