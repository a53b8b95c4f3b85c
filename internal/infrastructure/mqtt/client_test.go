package mqtt

import (
	"bytes"
	"errors"
	"testing"
)

// =============================================================================
// Topic Builder Tests
// =============================================================================

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"GatewayCommand", topics.GatewayCommand("fac-1", "gw-7"), "blulok/facility/fac-1/gateway/gw-7/command"},
		{"GatewayKey", topics.GatewayKey("fac-1", "gw-7"), "blulok/facility/fac-1/gateway/gw-7/key"},
		{"GatewayAck", topics.GatewayAck("fac-1", "gw-7"), "blulok/facility/fac-1/gateway/gw-7/ack"},
		{"GatewayDenylist", topics.GatewayDenylist("fac-1", "gw-7"), "blulok/facility/fac-1/gateway/gw-7/denylist"},
		{"GatewayHealth", topics.GatewayHealth("fac-1", "gw-7"), "blulok/facility/fac-1/gateway/gw-7/health"},
		{"CloudStatus", topics.CloudStatus(), "blulok/cloud/status"},
		{"CloudEvent", topics.CloudEvent("key_distribution_failed"), "blulok/cloud/event/key_distribution_failed"},
		{"AllGatewayAcks", topics.AllGatewayAcks(), "blulok/facility/+/gateway/+/ack"},
		{"AllGatewayHealth", topics.AllGatewayHealth(), "blulok/facility/+/gateway/+/health"},
		{"AllTopics", topics.AllTopics(), "blulok/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Validation Tests (no broker required)
// =============================================================================

func newDisconnectedClient() *Client {
	return &Client{
		subscriptions: make(map[string]subscription),
	}
}

func TestPublish_Validation(t *testing.T) {
	c := newDisconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "blulok/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "blulok/test", bytes.Repeat([]byte("a"), maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "blulok/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := newDisconnectedClient()

	if err := c.Subscribe("", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() with empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("blulok/test", 3, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe() with invalid QoS error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("blulok/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() with nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("blulok/test", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() while disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	c := newDisconnectedClient()

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() with empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("blulok/test"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() while disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	c := newDisconnectedClient()

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if c.HasSubscription("blulok/test") {
		t.Error("HasSubscription() = true for untracked topic")
	}
}
