// Package mqtt provides MQTT client connectivity for BluLok Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// BluLok uses MQTT as the message bus between the cloud and facility
// gateways. Key commands, denylist packets and gateway acknowledgements
// all flow over facility-scoped topics so broker ACLs can restrict each
// gateway to its own facility.
//
//	BluLok Cloud ↔ MQTT Broker ↔ Facility Gateways
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Key material in command payloads is public-key only, never secrets
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to gateway acknowledgements
//	err = client.Subscribe(mqtt.Topics{}.AllGatewayAcks(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish key command
//	topic := mqtt.Topics{}.GatewayCommand("fac-1", "gw-7")
//	client.Publish(topic, payload, 1, false)
package mqtt
