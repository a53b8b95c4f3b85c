package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blulok/blulok-core/internal/access"
	"github.com/blulok/blulok-core/internal/infrastructure/mqtt"
)

// DefaultAckTimeout is how long a key operation waits for the gateway
// to acknowledge before the call fails.
const DefaultAckTimeout = 10 * time.Second

// Request actions understood by gateway firmware.
const (
	actionAddKey    = "add_key"
	actionRemoveKey = "remove_key"
)

// Broker is the MQTT capability the service needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// LockDirectory resolves locks to their facility and gateway.
type LockDirectory interface {
	GetLock(ctx context.Context, id string) (*access.Lock, error)
}

// Logger interface for gateway logging.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// keyRequest is the wire shape of a key operation sent to a gateway.
type keyRequest struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	LockID    string `json:"lock_id"`
	PublicKey string `json:"public_key"`
	UserID    string `json:"user_id"`
}

// keyAck is the wire shape of a gateway acknowledgement.
type keyAck struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type ackResult struct {
	success bool
	detail  string
}

// Service pushes key material to physical locks through their facility
// gateway. Each operation publishes a correlated request on the
// gateway's key topic and waits for the matching acknowledgement;
// no ack within the timeout is a failure the caller may retry.
type Service struct {
	broker  Broker
	locks   LockDirectory
	topics  mqtt.Topics
	qos     byte
	timeout time.Duration
	logger  Logger

	mu      sync.Mutex
	pending map[string]chan ackResult
}

// NewService creates a gateway service. A non-positive timeout falls
// back to DefaultAckTimeout.
func NewService(broker Broker, locks LockDirectory, qos byte, timeout time.Duration, logger Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	return &Service{
		broker:  broker,
		locks:   locks,
		qos:     qos,
		timeout: timeout,
		logger:  logger,
		pending: make(map[string]chan ackResult),
	}
}

// Start subscribes to gateway acknowledgement topics. Must be called
// once before any key operation.
func (s *Service) Start() error {
	if err := s.broker.Subscribe(s.topics.AllGatewayAcks(), s.qos, s.handleAck); err != nil {
		return fmt.Errorf("subscribing to gateway acks: %w", err)
	}
	return nil
}

// AddKeyToLock installs a device public key on a lock's allowlist.
func (s *Service) AddKeyToLock(ctx context.Context, lockID, publicKey, userID, gatewayID string) error {
	return s.request(ctx, actionAddKey, lockID, publicKey, userID, gatewayID)
}

// RemoveKeyFromLock removes a device public key from a lock's allowlist.
func (s *Service) RemoveKeyFromLock(ctx context.Context, lockID, publicKey, userID, gatewayID string) error {
	return s.request(ctx, actionRemoveKey, lockID, publicKey, userID, gatewayID)
}

func (s *Service) request(ctx context.Context, action, lockID, publicKey, userID, gatewayID string) error {
	lock, err := s.locks.GetLock(ctx, lockID)
	if err != nil {
		return fmt.Errorf("resolving lock %s: %w", lockID, err)
	}
	if gatewayID == "" {
		gatewayID = lock.GatewayID
	}

	req := keyRequest{
		ID:        uuid.NewString(),
		Action:    action,
		LockID:    lockID,
		PublicKey: publicKey,
		UserID:    userID,
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding key request: %w", err)
	}

	ch := s.register(req.ID)
	defer s.unregister(req.ID)

	topic := s.topics.GatewayKey(lock.FacilityID, gatewayID)
	if err := s.broker.Publish(topic, raw, s.qos, false); err != nil {
		return fmt.Errorf("publishing key request: %w", err)
	}

	s.logger.Debug("key request sent",
		"request_id", req.ID,
		"action", action,
		"lock_id", lockID,
		"gateway_id", gatewayID,
	)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case result := <-ch:
		if !result.success {
			return fmt.Errorf("%w: %s", ErrRejected, result.detail)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: request %s after %s", ErrAckTimeout, req.ID, s.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleAck correlates an acknowledgement with its waiting request.
// Acks for unknown request ids (late arrivals, other instances) are
// logged and dropped.
func (s *Service) handleAck(topic string, payload []byte) error {
	var ack keyAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding gateway ack: %w", err)
	}
	if ack.ID == "" {
		return fmt.Errorf("gateway ack on %s missing request id", topic)
	}

	s.mu.Lock()
	ch, ok := s.pending[ack.ID]
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("unmatched gateway ack", "request_id", ack.ID, "topic", topic)
		return nil
	}

	// Buffered; a duplicate ack for the same id is dropped.
	select {
	case ch <- ackResult{success: ack.Success, detail: ack.Error}:
	default:
	}
	return nil
}

func (s *Service) register(id string) chan ackResult {
	ch := make(chan ackResult, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()
	return ch
}

func (s *Service) unregister(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}
