package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blulok/blulok-core/internal/device"
)

const (
	// pendingBatchSize caps how many rows one worker pass handles.
	pendingBatchSize = 100

	// maxRetries is the gateway delivery retry ceiling per row.
	maxRetries = 3

	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
)

// GatewayClient performs key operations against facility gateways.
// Any returned error is treated as retryable.
type GatewayClient interface {
	AddKeyToLock(ctx context.Context, lockID, publicKey, userID, gatewayID string) error
	RemoveKeyFromLock(ctx context.Context, lockID, publicKey, userID, gatewayID string) error
}

// DeviceActivator extends the device lookup with the status write the
// auto-activation path needs.
type DeviceActivator interface {
	DeviceStore
	UpdateStatus(ctx context.Context, id string, status device.Status) error
}

// Telemetry receives key transition outcomes. May be absent.
type Telemetry interface {
	WriteKeyTransition(deviceID, targetType, targetID, status string, attempts int)
}

// Worker drains pending distribution rows against gateways. It is
// driven by an external ticker and never sleeps: backoff is recorded
// on the row as a next-attempt time and enforced by the pending query.
//
// Every failure is captured into row state. One poisoned row cannot
// abort the rest of its batch.
type Worker struct {
	repo      Repository
	devices   DeviceActivator
	gateway   GatewayClient
	logger    Logger
	telemetry Telemetry

	now func() time.Time
}

// NewWorker creates a distribution worker. telemetry may be nil.
func NewWorker(repo Repository, devices DeviceActivator, gw GatewayClient, logger Logger, telemetry Telemetry) *Worker {
	return &Worker{
		repo:      repo,
		devices:   devices,
		gateway:   gw,
		logger:    logger,
		telemetry: telemetry,
		now:       time.Now,
	}
}

// ProcessPending handles one batch of due pending rows sequentially.
// Returns the number of rows that reached added/removed this pass.
func (w *Worker) ProcessPending(ctx context.Context) (int, error) {
	rows, err := w.repo.ListPending(ctx, pendingBatchSize, w.now())
	if err != nil {
		return 0, fmt.Errorf("listing pending distributions: %w", err)
	}

	completed := 0
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		if w.processRow(ctx, &rows[i]) {
			completed++
		}
	}

	return completed, nil
}

// processRow advances one pending row. Returns true when the row
// reached its target status.
func (w *Worker) processRow(ctx context.Context, row *Distribution) bool {
	dev, err := w.devices.GetByID(ctx, row.UserDeviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			// Nothing to retry without a device.
			w.failRow(ctx, row, "device not found")
			return false
		}
		w.logger.Error("device lookup failed",
			"distribution_id", row.ID,
			"device_id", row.UserDeviceID,
			"error", err,
		)
		return false
	}

	if !dev.HasPublicKey() {
		w.failRow(ctx, row, "device has no public key")
		return false
	}

	if row.RetryCount >= maxRetries {
		w.logger.Warn("distribution retry limit reached",
			"distribution_id", row.ID,
			"device_id", row.UserDeviceID,
			"target_id", row.TargetID,
			"retry_count", row.RetryCount,
			"last_error", row.Error,
		)
		w.failRow(ctx, row, fmt.Sprintf("retry limit reached: %s", row.Error))
		return false
	}

	if err := w.deliver(ctx, row, dev); err != nil {
		w.recordFailure(ctx, row, err)
		return false
	}

	return w.complete(ctx, row, dev)
}

// deliver performs the gateway operation the row is pending on.
func (w *Worker) deliver(ctx context.Context, row *Distribution, dev *device.UserDevice) error {
	switch row.Status {
	case StatusPendingAdd:
		return w.gateway.AddKeyToLock(ctx, row.TargetID, dev.PublicKey, dev.UserID, row.GatewayID)
	case StatusPendingRemove:
		return w.gateway.RemoveKeyFromLock(ctx, row.TargetID, dev.PublicKey, dev.UserID, row.GatewayID)
	default:
		return fmt.Errorf("row %s not pending (status %s)", row.ID, row.Status)
	}
}

// complete records the successful transition and re-evaluates device
// activation after every successful add.
func (w *Worker) complete(ctx context.Context, row *Distribution, dev *device.UserDevice) bool {
	switch row.Status {
	case StatusPendingAdd:
		if err := w.repo.MarkAdded(ctx, row.ID); err != nil {
			w.logger.Error("marking distribution added failed", "distribution_id", row.ID, "error", err)
			return false
		}
		w.emitTransition(row, StatusAdded)
		maybeActivate(ctx, w.repo, w.devices, w.logger, dev)
	case StatusPendingRemove:
		if err := w.repo.MarkRemoved(ctx, row.ID); err != nil {
			w.logger.Error("marking distribution removed failed", "distribution_id", row.ID, "error", err)
			return false
		}
		w.emitTransition(row, StatusRemoved)
	}

	w.logger.Info("distribution completed",
		"distribution_id", row.ID,
		"device_id", row.UserDeviceID,
		"target_id", row.TargetID,
	)
	return true
}

// recordFailure captures a retryable gateway failure with backoff.
func (w *Worker) recordFailure(ctx context.Context, row *Distribution, cause error) {
	attemptAt := w.now()
	next := attemptAt.Add(backoffDelay(row.RetryCount + 1))

	if err := w.repo.RecordFailure(ctx, row.ID, cause.Error(), attemptAt, next); err != nil {
		w.logger.Error("recording distribution failure failed", "distribution_id", row.ID, "error", err)
		return
	}

	w.logger.Warn("distribution attempt failed",
		"distribution_id", row.ID,
		"device_id", row.UserDeviceID,
		"target_id", row.TargetID,
		"retry_count", row.RetryCount+1,
		"next_attempt_at", next,
		"error", cause,
	)
}

// failRow dead-letters a row.
func (w *Worker) failRow(ctx context.Context, row *Distribution, message string) {
	if err := w.repo.MarkFailed(ctx, row.ID, message); err != nil {
		w.logger.Error("marking distribution failed failed", "distribution_id", row.ID, "error", err)
		return
	}
	w.emitTransition(row, StatusFailed)
}

func (w *Worker) emitTransition(row *Distribution, to Status) {
	if w.telemetry == nil {
		return
	}
	w.telemetry.WriteKeyTransition(row.UserDeviceID, string(row.TargetType), row.TargetID, string(to), row.RetryCount)
}

// backoffDelay returns the wait before the given attempt number,
// doubling from the base and capped at maxBackoff.
func backoffDelay(attempt int) time.Duration {
	d := baseBackoff << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
