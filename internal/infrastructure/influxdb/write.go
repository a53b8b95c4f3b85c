package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteKeyTransition records a key distribution state transition.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Transitions feed the facility dashboards showing reconciliation lag
// and failure rates per gateway.
//
// Example:
//
//	client.WriteKeyTransition("dev-1", "lock", "lock-9", "added", 1)
func (c *Client) WriteKeyTransition(deviceID, targetType, targetID, status string, attempts int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"key_transitions",
		map[string]string{
			"device_id":   deviceID,
			"target_type": targetType,
			"status":      status,
		},
		map[string]interface{}{
			"target_id": targetID,
			"attempts":  attempts,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRoutePassIssued records a route pass issuance event.
func (c *Client) WriteRoutePassIssued(deviceID, userID string, audienceCount int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"route_passes",
		map[string]string{
			"device_id": deviceID,
			"user_id":   userID,
		},
		map[string]interface{}{
			"audience_count": audienceCount,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDispatch records a gateway dispatch attempt and its outcome.
func (c *Client) WriteDispatch(gatewayID, commandType, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dispatches",
		map[string]string{
			"gateway_id":   gatewayID,
			"command_type": commandType,
			"status":       status,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
// Tags should stay low cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed events).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
