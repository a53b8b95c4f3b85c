package distribution

import (
	"context"

	"github.com/blulok/blulok-core/internal/device"
)

// maybeActivate flips a pending_key device to active once its key
// material has fully landed: zero pending adds and at least one added.
// Runs after every transition to added, whether the row got there
// through gateway delivery or a cancelled removal.
func maybeActivate(ctx context.Context, repo Repository, devices DeviceActivator, logger Logger, dev *device.UserDevice) {
	if dev.Status != device.StatusPendingKey {
		return
	}

	pending, err := repo.CountByDeviceStatus(ctx, dev.ID, StatusPendingAdd)
	if err != nil {
		logger.Error("counting pending adds failed", "device_id", dev.ID, "error", err)
		return
	}
	if pending > 0 {
		return
	}

	added, err := repo.CountByDeviceStatus(ctx, dev.ID, StatusAdded)
	if err != nil {
		logger.Error("counting added rows failed", "device_id", dev.ID, "error", err)
		return
	}
	if added == 0 {
		return
	}

	if err := devices.UpdateStatus(ctx, dev.ID, device.StatusActive); err != nil {
		logger.Error("activating device failed", "device_id", dev.ID, "error", err)
		return
	}

	logger.Info("device activated", "device_id", dev.ID, "user_id", dev.UserID)
}
