package mqtt

import "fmt"

// Topic prefixes for the BluLok MQTT hierarchy.
//
// Gateway topics use the scheme: blulok/facility/{facility_id}/gateway/{gateway_id}/{category}
// so broker ACLs can be scoped per facility.
const (
	// TopicPrefix is the base for all BluLok topics.
	TopicPrefix = "blulok"

	// TopicPrefixFacility is the base for facility-scoped gateway topics.
	TopicPrefixFacility = "blulok/facility"

	// TopicPrefixCloud is the base for cloud-side topics.
	TopicPrefixCloud = "blulok/cloud"
)

// Topics provides builders for BluLok MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.GatewayCommand("fac-1", "gw-7")
//	// Returns: "blulok/facility/fac-1/gateway/gw-7/command"
type Topics struct{}

// GatewayCommand returns the topic for key commands to a facility gateway.
//
// Example: blulok/facility/fac-1/gateway/gw-7/command
func (Topics) GatewayCommand(facilityID, gatewayID string) string {
	return fmt.Sprintf("%s/%s/gateway/%s/command", TopicPrefixFacility, facilityID, gatewayID)
}

// GatewayKey returns the topic for correlated key requests to a gateway.
// Key requests expect an acknowledgement on the ack topic; plain commands
// do not, so the two use separate topics.
//
// Example: blulok/facility/fac-1/gateway/gw-7/key
func (Topics) GatewayKey(facilityID, gatewayID string) string {
	return fmt.Sprintf("%s/%s/gateway/%s/key", TopicPrefixFacility, facilityID, gatewayID)
}

// GatewayAck returns the topic for command acknowledgements from a gateway.
//
// Example: blulok/facility/fac-1/gateway/gw-7/ack
func (Topics) GatewayAck(facilityID, gatewayID string) string {
	return fmt.Sprintf("%s/%s/gateway/%s/ack", TopicPrefixFacility, facilityID, gatewayID)
}

// GatewayDenylist returns the topic for denylist packets to a gateway.
//
// Example: blulok/facility/fac-1/gateway/gw-7/denylist
func (Topics) GatewayDenylist(facilityID, gatewayID string) string {
	return fmt.Sprintf("%s/%s/gateway/%s/denylist", TopicPrefixFacility, facilityID, gatewayID)
}

// GatewayHealth returns the topic for gateway health status.
//
// Example: blulok/facility/fac-1/gateway/gw-7/health
func (Topics) GatewayHealth(facilityID, gatewayID string) string {
	return fmt.Sprintf("%s/%s/gateway/%s/health", TopicPrefixFacility, facilityID, gatewayID)
}

// CloudStatus returns the cloud status topic used for the LWT.
//
// Example: blulok/cloud/status
func (Topics) CloudStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixCloud)
}

// CloudEvent returns the topic for cloud-side events.
//
// Example: blulok/cloud/event/key_distribution_failed
func (Topics) CloudEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCloud, eventType)
}

// AllGatewayAcks returns a pattern matching acknowledgements from all gateways.
//
// Pattern: blulok/facility/+/gateway/+/ack
func (Topics) AllGatewayAcks() string {
	return fmt.Sprintf("%s/+/gateway/+/ack", TopicPrefixFacility)
}

// AllGatewayHealth returns a pattern matching health updates from all gateways.
//
// Pattern: blulok/facility/+/gateway/+/health
func (Topics) AllGatewayHealth() string {
	return fmt.Sprintf("%s/+/gateway/+/health", TopicPrefixFacility)
}

// AllTopics returns a pattern matching all BluLok topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: blulok/#
func (Topics) AllTopics() string {
	return "blulok/#"
}
