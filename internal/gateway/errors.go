package gateway

import "errors"

var (
	// ErrAckTimeout indicates the gateway did not acknowledge within
	// the configured window. Retryable.
	ErrAckTimeout = errors.New("gateway: ack timeout")

	// ErrRejected indicates the gateway acknowledged with a failure.
	ErrRejected = errors.New("gateway: command rejected")
)
