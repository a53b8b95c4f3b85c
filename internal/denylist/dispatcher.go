package denylist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blulok/blulok-core/internal/access"
	"github.com/blulok/blulok-core/internal/infrastructure/mqtt"
)

// Publisher is the broker capability the dispatcher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// GatewayDirectory resolves the facility gateways a denylist update
// must reach, either from a user's grants or from explicit lock ids.
type GatewayDirectory interface {
	Grants(ctx context.Context, userID string) ([]access.Grant, error)
	GetLock(ctx context.Context, id string) (*access.Lock, error)
}

// Dispatcher pushes signed denylist packets toward facility gateways.
// The Optimizer filters updates with no live pass to reject; the
// Builder signs what remains before anything leaves the process.
type Dispatcher struct {
	builder   *Builder
	optimizer *Optimizer
	gateways  GatewayDirectory
	publisher Publisher
	topics    mqtt.Topics
	qos       byte
	logger    Logger
}

// NewDispatcher creates a denylist dispatcher.
func NewDispatcher(builder *Builder, optimizer *Optimizer, gateways GatewayDirectory, publisher Publisher, qos byte, logger Logger) *Dispatcher {
	return &Dispatcher{
		builder:   builder,
		optimizer: optimizer,
		gateways:  gateways,
		publisher: publisher,
		qos:       qos,
		logger:    logger,
	}
}

// RevokeUser denylists the user's passes in the field. A nil expiresAt
// makes the entry permanent. When lockIDs is non-empty the packet is
// targeted at those locks only; otherwise it is system-wide and goes to
// every gateway the user's current grants reach.
//
// The update is skipped entirely when the user has no live pass for the
// entry to reject.
func (d *Dispatcher) RevokeUser(ctx context.Context, userID string, expiresAt *int64, lockIDs []string) error {
	if d.optimizer.ShouldSkipAdd(ctx, userID) {
		d.logger.Info("denylist add skipped, no live pass", "user_id", userID)
		return nil
	}

	packet, err := d.builder.BuildAdd([]Entry{{Sub: userID, Exp: expiresAt}}, lockIDs)
	if err != nil {
		return fmt.Errorf("building denylist add: %w", err)
	}
	return d.broadcast(ctx, userID, lockIDs, packet)
}

// RestoreUser lifts a previous denylist entry. The removal is skipped
// when the entry carried an expiry that has already passed, since locks
// expire such entries locally.
func (d *Dispatcher) RestoreUser(ctx context.Context, userID string, expiresAt *int64, lockIDs []string) error {
	entry := Entry{Sub: userID, Exp: expiresAt}
	if d.optimizer.ShouldSkipRemove(entry) {
		d.logger.Info("denylist remove skipped, entry expired", "user_id", userID)
		return nil
	}

	packet, err := d.builder.BuildRemove([]Entry{entry}, lockIDs)
	if err != nil {
		return fmt.Errorf("building denylist remove: %w", err)
	}
	return d.broadcast(ctx, userID, lockIDs, packet)
}

// broadcast publishes the packet to each distinct gateway serving the
// affected locks. Per-gateway publish failures are collected so one
// unreachable gateway cannot block the rest.
func (d *Dispatcher) broadcast(ctx context.Context, userID string, lockIDs []string, packet *Packet) error {
	destinations, err := d.resolveDestinations(ctx, userID, lockIDs)
	if err != nil {
		return err
	}
	if len(destinations) == 0 {
		d.logger.Warn("denylist update has no reachable gateway", "user_id", userID)
		return nil
	}

	raw, err := json.Marshal(packet)
	if err != nil {
		return fmt.Errorf("encoding denylist packet: %w", err)
	}

	var errs []error
	for _, dest := range destinations {
		topic := d.topics.GatewayDenylist(dest.facilityID, dest.gatewayID)
		if err := d.publisher.Publish(topic, raw, d.qos, false); err != nil {
			errs = append(errs, fmt.Errorf("publishing denylist to %s: %w", topic, err))
			continue
		}
		d.logger.Info("denylist update published",
			"user_id", userID,
			"gateway_id", dest.gatewayID,
			"topic", topic,
		)
	}
	return errors.Join(errs...)
}

type destination struct {
	facilityID string
	gatewayID  string
}

// resolveDestinations deduplicates the gateways behind the affected
// locks. Explicit lock ids win over the user's grants: a revocation
// often lands after the grants themselves are gone.
func (d *Dispatcher) resolveDestinations(ctx context.Context, userID string, lockIDs []string) ([]destination, error) {
	var locks []access.Lock
	if len(lockIDs) > 0 {
		for _, id := range lockIDs {
			lock, err := d.gateways.GetLock(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("resolving lock %s: %w", id, err)
			}
			locks = append(locks, *lock)
		}
	} else {
		grants, err := d.gateways.Grants(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("resolving grants for user %s: %w", userID, err)
		}
		for _, g := range grants {
			locks = append(locks, g.Lock)
		}
	}

	seen := make(map[destination]struct{}, len(locks))
	destinations := make([]destination, 0, len(locks))
	for _, lock := range locks {
		dest := destination{facilityID: lock.FacilityID, gatewayID: lock.GatewayID}
		if _, dup := seen[dest]; dup {
			continue
		}
		seen[dest] = struct{}{}
		destinations = append(destinations, dest)
	}
	return destinations, nil
}
