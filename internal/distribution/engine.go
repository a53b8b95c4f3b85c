package distribution

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blulok/blulok-core/internal/access"
	"github.com/blulok/blulok-core/internal/device"
	"github.com/blulok/blulok-core/internal/dispatch"
)

// AccessResolver resolves who should hold keys on which locks.
type AccessResolver interface {
	Grants(ctx context.Context, userID string) ([]access.Grant, error)
	GetLock(ctx context.Context, id string) (*access.Lock, error)
	TenantsWithUnitAccess(ctx context.Context, unitID string) ([]string, error)
}

// DeviceStore is the device lookup surface the engine needs.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*device.UserDevice, error)
	ListReconcilableByUser(ctx context.Context, userID string) ([]device.UserDevice, error)
}

// Logger interface for engine logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Engine is the key distribution reconciler. It reacts to access
// changes by diffing what each device should hold against what its
// distribution rows say it holds, and enqueues only the delta. State
// transitions on rows are driven exclusively here and in the Worker.
type Engine struct {
	repo    Repository
	devices DeviceActivator
	access  AccessResolver
	queue   dispatch.Queue
	logger  Logger

	// rotating guards the two-phase rotation per device. Checked and
	// inserted under one lock so a concurrent rotation fails fast.
	mu       sync.Mutex
	rotating map[string]struct{}
}

// NewEngine creates a key distribution engine.
func NewEngine(repo Repository, devices DeviceActivator, accessRepo AccessResolver, queue dispatch.Queue, logger Logger) *Engine {
	return &Engine{
		repo:     repo,
		devices:  devices,
		access:   accessRepo,
		queue:    queue,
		logger:   logger,
		rotating: make(map[string]struct{}),
	}
}

// OnTenancyChange recomputes the user's full access set and reconciles
// every one of their key-holding devices against it. Only deltas are
// enqueued; unchanged rows produce no gateway traffic.
//
// Per-device failures are collected, not short-circuited, so one bad
// device cannot block reconciliation of the user's other devices.
func (e *Engine) OnTenancyChange(ctx context.Context, userID string) error {
	shouldHave, err := e.shouldHaveLocks(ctx, userID)
	if err != nil {
		return err
	}

	devices, err := e.devices.ListReconcilableByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing devices for user %s: %w", userID, err)
	}

	var errs []error
	for i := range devices {
		if err := e.reconcile(ctx, &devices[i], shouldHave, true); err != nil {
			e.logger.Error("device reconciliation failed",
				"user_id", userID,
				"device_id", devices[i].ID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// OnLockAdded grants the new lock to every tenant of its unit, across
// all their key-holding devices.
func (e *Engine) OnLockAdded(ctx context.Context, lockID, unitID string) error {
	lock, err := e.access.GetLock(ctx, lockID)
	if err != nil {
		return fmt.Errorf("resolving lock %s: %w", lockID, err)
	}

	tenants, err := e.access.TenantsWithUnitAccess(ctx, unitID)
	if err != nil {
		return fmt.Errorf("listing tenants for unit %s: %w", unitID, err)
	}

	var errs []error
	for _, tenantID := range tenants {
		devices, err := e.devices.ListReconcilableByUser(ctx, tenantID)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing devices for tenant %s: %w", tenantID, err))
			continue
		}
		for i := range devices {
			if err := e.ensureAdded(ctx, &devices[i], lock); err != nil {
				e.logger.Error("lock grant failed",
					"lock_id", lockID,
					"device_id", devices[i].ID,
					"error", err,
				)
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// RotateKeys tears down and rebuilds all of a device's key material.
// Existing added/pending_add rows are marked for removal with real
// revoke commands, then still-warranted access is re-enqueued as fresh
// adds so new key material actually reaches each lock.
//
// Returns ErrRotationInProgress if the device is already rotating.
func (e *Engine) RotateKeys(ctx context.Context, userID, deviceID string) error {
	if err := e.beginRotation(deviceID); err != nil {
		return err
	}
	defer e.endRotation(deviceID)

	dev, err := e.devices.GetByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("resolving device %s: %w", deviceID, err)
	}
	if dev.UserID != userID {
		return device.ErrDeviceNotFound
	}

	current, err := e.repo.ListActiveByDevice(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("listing distributions for device %s: %w", deviceID, err)
	}

	for i := range current {
		row := &current[i]
		if row.Status != StatusAdded && row.Status != StatusPendingAdd {
			continue
		}
		if err := e.enqueueRemoval(ctx, dev, row); err != nil {
			return fmt.Errorf("tearing down key on %s: %w", row.TargetID, err)
		}
	}

	shouldHave, err := e.shouldHaveLocks(ctx, userID)
	if err != nil {
		return err
	}

	// allowCancel false: the teardown above must not be cancelled by
	// the rebuild, otherwise stale key material would survive rotation.
	if err := e.reconcile(ctx, dev, shouldHave, false); err != nil {
		return err
	}

	e.logger.Info("key rotation enqueued", "user_id", userID, "device_id", deviceID)
	return nil
}

func (e *Engine) beginRotation(deviceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, active := e.rotating[deviceID]; active {
		return ErrRotationInProgress
	}
	e.rotating[deviceID] = struct{}{}
	return nil
}

func (e *Engine) endRotation(deviceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rotating, deviceID)
}

// shouldHaveLocks resolves the user's grants to a deduplicated lock
// set. A lock reachable both directly and through a share counts once.
func (e *Engine) shouldHaveLocks(ctx context.Context, userID string) ([]access.Lock, error) {
	grants, err := e.access.Grants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving grants for user %s: %w", userID, err)
	}

	seen := make(map[string]struct{}, len(grants))
	locks := make([]access.Lock, 0, len(grants))
	for _, g := range grants {
		if _, dup := seen[g.Lock.ID]; dup {
			continue
		}
		seen[g.Lock.ID] = struct{}{}
		locks = append(locks, g.Lock)
	}
	return locks, nil
}

// reconcile diffs one device against its should-have lock set from a
// single snapshot of both sides. allowCancel enables the in-place
// cancellation of pending removals; rotation disables it.
func (e *Engine) reconcile(ctx context.Context, dev *device.UserDevice, shouldHave []access.Lock, allowCancel bool) error {
	current, err := e.repo.ListActiveByDevice(ctx, dev.ID)
	if err != nil {
		return fmt.Errorf("listing distributions for device %s: %w", dev.ID, err)
	}

	byTarget := indexByTarget(current)
	wanted := make(map[string]struct{}, len(shouldHave))

	for i := range shouldHave {
		lock := &shouldHave[i]
		wanted[lock.ID] = struct{}{}

		row, tracked := byTarget[lock.ID]
		if !tracked {
			if err := e.enqueueAdd(ctx, dev, lock); err != nil {
				return err
			}
			continue
		}

		switch row.Status {
		case StatusPendingRemove:
			if allowCancel {
				if err := e.repo.FlipToAdded(ctx, row.ID); err != nil {
					return fmt.Errorf("cancelling removal on %s: %w", lock.ID, err)
				}
				e.logger.Info("pending removal cancelled",
					"device_id", dev.ID,
					"target_id", lock.ID,
				)
				maybeActivate(ctx, e.repo, e.devices, e.logger, dev)
			} else if err := e.enqueueAdd(ctx, dev, lock); err != nil {
				return err
			}
		case StatusFailed:
			// Dead-lettered rows are terminal; renewed need gets a
			// fresh row, the old one stays for audit.
			if err := e.enqueueAdd(ctx, dev, lock); err != nil {
				return err
			}
		case StatusPendingAdd, StatusAdded:
			// Already converging.
		}
	}

	for _, row := range byTarget {
		if _, stillWanted := wanted[row.TargetID]; stillWanted {
			continue
		}
		if row.Status != StatusAdded && row.Status != StatusPendingAdd {
			continue
		}
		if err := e.enqueueRemoval(ctx, dev, row); err != nil {
			return err
		}
	}

	return nil
}

// ensureAdded applies the add side of the diff for a single lock.
func (e *Engine) ensureAdded(ctx context.Context, dev *device.UserDevice, lock *access.Lock) error {
	current, err := e.repo.ListActiveByDevice(ctx, dev.ID)
	if err != nil {
		return fmt.Errorf("listing distributions for device %s: %w", dev.ID, err)
	}

	row, tracked := indexByTarget(current)[lock.ID]
	if !tracked {
		return e.enqueueAdd(ctx, dev, lock)
	}
	switch row.Status {
	case StatusPendingRemove:
		if err := e.repo.FlipToAdded(ctx, row.ID); err != nil {
			return fmt.Errorf("cancelling removal on %s: %w", lock.ID, err)
		}
		maybeActivate(ctx, e.repo, e.devices, e.logger, dev)
	case StatusFailed:
		return e.enqueueAdd(ctx, dev, lock)
	}
	return nil
}

// indexByTarget maps target id to its governing row. During rotation a
// target can briefly carry both a pending_remove row and a fresh add;
// the converging row wins so diffs judge against live state.
func indexByTarget(rows []Distribution) map[string]*Distribution {
	byTarget := make(map[string]*Distribution, len(rows))
	for i := range rows {
		row := &rows[i]
		existing, ok := byTarget[row.TargetID]
		if !ok || rowPrecedence(row.Status) > rowPrecedence(existing.Status) {
			byTarget[row.TargetID] = row
		}
	}
	return byTarget
}

func rowPrecedence(s Status) int {
	switch s {
	case StatusAdded, StatusPendingAdd:
		return 2
	case StatusPendingRemove:
		return 1
	default:
		return 0
	}
}

// enqueueAdd submits an ADD_KEY command and inserts the tracking row.
// Both must succeed or the operation fails as a whole.
func (e *Engine) enqueueAdd(ctx context.Context, dev *device.UserDevice, lock *access.Lock) error {
	payload, err := buildKeyPayload(lock.KeyVersion, dev.PublicKey, dev.UserID)
	if err != nil {
		return fmt.Errorf("building key payload for %s: %w", lock.ID, err)
	}

	cmd := &dispatch.Command{
		FacilityID: lock.FacilityID,
		GatewayID:  lock.GatewayID,
		DeviceID:   dev.ID,
		Type:       dispatch.CommandAddKey,
		Payload:    payload,
	}
	if err := e.queue.Enqueue(ctx, cmd); err != nil {
		return fmt.Errorf("enqueuing add command for %s: %w", lock.ID, err)
	}

	row := &Distribution{
		UserDeviceID: dev.ID,
		TargetType:   lock.DeviceClass,
		TargetID:     lock.ID,
		GatewayID:    lock.GatewayID,
		KeyVersion:   lock.KeyVersion,
		Status:       StatusPendingAdd,
	}
	if err := e.repo.Insert(ctx, row); err != nil {
		return fmt.Errorf("inserting distribution for %s: %w", lock.ID, err)
	}

	e.logger.Info("key add enqueued",
		"device_id", dev.ID,
		"target_id", lock.ID,
		"gateway_id", lock.GatewayID,
	)
	return nil
}

// enqueueRemoval submits a REVOKE_KEY command and flips the existing
// row to pending_remove.
func (e *Engine) enqueueRemoval(ctx context.Context, dev *device.UserDevice, row *Distribution) error {
	lock, err := e.access.GetLock(ctx, row.TargetID)
	if err != nil {
		return fmt.Errorf("resolving lock %s: %w", row.TargetID, err)
	}

	payload, err := buildKeyPayload(row.KeyVersion, dev.PublicKey, dev.UserID)
	if err != nil {
		return fmt.Errorf("building key payload for %s: %w", row.TargetID, err)
	}

	cmd := &dispatch.Command{
		FacilityID: lock.FacilityID,
		GatewayID:  row.GatewayID,
		DeviceID:   dev.ID,
		Type:       dispatch.CommandRevokeKey,
		Payload:    payload,
	}
	if err := e.queue.Enqueue(ctx, cmd); err != nil {
		return fmt.Errorf("enqueuing revoke command for %s: %w", row.TargetID, err)
	}

	if err := e.repo.MarkPendingRemove(ctx, row.ID); err != nil {
		return fmt.Errorf("marking distribution pending remove: %w", err)
	}

	e.logger.Info("key removal enqueued",
		"device_id", dev.ID,
		"target_id", row.TargetID,
		"gateway_id", row.GatewayID,
	)
	return nil
}
