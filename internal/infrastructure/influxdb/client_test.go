package influxdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/blulok/blulok-core/internal/infrastructure/config"
	"github.com/blulok/blulok-core/internal/infrastructure/influxdb"
)

func TestConnect_Disabled(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: false}

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestDisconnectedClient(t *testing.T) {
	// A zero-value client is never connected; writes must be silent no-ops
	// and health checks must report the disconnected state.
	c := &influxdb.Client{}

	if c.IsConnected() {
		t.Error("IsConnected() = true for zero-value client")
	}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	// Must not panic on the nil write API
	c.WriteKeyTransition("dev-1", "lock", "lock-9", "added", 1)
	c.WriteRoutePassIssued("dev-1", "user-1", 2)
	c.WriteDispatch("gw-7", "ADD_KEY", "sent")
	c.Flush()

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
