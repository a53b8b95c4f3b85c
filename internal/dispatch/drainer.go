package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blulok/blulok-core/internal/infrastructure/mqtt"
)

// drainBatchSize is the maximum commands published per drain pass.
const drainBatchSize = 100

// maxPublishAttempts is the ceiling before a command is failed.
const maxPublishAttempts = 5

// Publisher is the MQTT capability the drainer needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger interface for drain logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Telemetry receives dispatch outcomes. Compatible with the InfluxDB
// client; may be absent.
type Telemetry interface {
	WriteDispatch(gatewayID, commandType, status string)
}

// envelope is the wire shape published to gateway command topics.
type envelope struct {
	ID       string          `json:"id"`
	Type     CommandType     `json:"type"`
	DeviceID string          `json:"device_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Drainer moves queued commands from the durable queue onto gateway
// MQTT topics. It runs on a fixed interval from the composition root;
// each pass drains up to drainBatchSize commands.
//
// A failed publish leaves the command queued for the next pass until
// the attempt ceiling, after which it is failed and left for operator
// attention. One bad command never stops the rest of the batch.
type Drainer struct {
	queue     Queue
	publisher Publisher
	topics    mqtt.Topics
	qos       byte
	logger    Logger
	telemetry Telemetry
}

// NewDrainer creates a dispatch drainer. telemetry may be nil.
func NewDrainer(queue Queue, publisher Publisher, qos byte, logger Logger, telemetry Telemetry) *Drainer {
	return &Drainer{
		queue:     queue,
		publisher: publisher,
		qos:       qos,
		logger:    logger,
		telemetry: telemetry,
	}
}

// Drain publishes one batch of queued commands.
// Returns the number of commands successfully sent.
func (d *Drainer) Drain(ctx context.Context) (int, error) {
	commands, err := d.queue.ListQueued(ctx, drainBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing queued commands: %w", err)
	}

	sent := 0
	for i := range commands {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if d.drainOne(ctx, &commands[i]) {
			sent++
		}
	}

	return sent, nil
}

// drainOne publishes a single command, updating its queue state.
func (d *Drainer) drainOne(ctx context.Context, cmd *Command) bool {
	raw, err := json.Marshal(envelope{
		ID:       cmd.ID,
		Type:     cmd.Type,
		DeviceID: cmd.DeviceID,
		Payload:  cmd.Payload,
	})
	if err != nil {
		// Unmarshalable commands can never succeed
		d.logger.Error("dropping undeliverable command",
			"command_id", cmd.ID,
			"error", err,
		)
		d.fail(ctx, cmd)
		return false
	}

	topic := d.topics.GatewayCommand(cmd.FacilityID, cmd.GatewayID)
	if err := d.publisher.Publish(topic, raw, d.qos, false); err != nil {
		d.logger.Warn("command publish failed",
			"command_id", cmd.ID,
			"gateway_id", cmd.GatewayID,
			"attempts", cmd.Attempts+1,
			"error", err,
		)
		if cmd.Attempts+1 >= maxPublishAttempts {
			d.fail(ctx, cmd)
			return false
		}
		if err := d.queue.RecordAttempt(ctx, cmd.ID); err != nil {
			d.logger.Error("recording attempt failed", "command_id", cmd.ID, "error", err)
		}
		return false
	}

	if err := d.queue.MarkSent(ctx, cmd.ID); err != nil {
		d.logger.Error("marking command sent failed", "command_id", cmd.ID, "error", err)
		return false
	}

	if d.telemetry != nil {
		d.telemetry.WriteDispatch(cmd.GatewayID, string(cmd.Type), string(StatusSent))
	}

	d.logger.Info("command dispatched",
		"command_id", cmd.ID,
		"type", cmd.Type,
		"gateway_id", cmd.GatewayID,
	)
	return true
}

func (d *Drainer) fail(ctx context.Context, cmd *Command) {
	if err := d.queue.MarkFailed(ctx, cmd.ID); err != nil {
		d.logger.Error("marking command failed failed", "command_id", cmd.ID, "error", err)
		return
	}
	if d.telemetry != nil {
		d.telemetry.WriteDispatch(cmd.GatewayID, string(cmd.Type), string(StatusFailed))
	}
}
