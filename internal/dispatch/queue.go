package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue defines the durable command queue. Producers (the key
// distribution engine, revocation handlers) enqueue; the Drainer
// consumes.
type Queue interface {
	// Enqueue persists a command in queued status. A missing ID is
	// assigned; facility, gateway and type are mandatory.
	Enqueue(ctx context.Context, cmd *Command) error

	// ListQueued returns up to limit queued commands, oldest first.
	ListQueued(ctx context.Context, limit int) ([]Command, error)

	// MarkSent transitions a command to sent and stamps the time.
	MarkSent(ctx context.Context, id string) error

	// MarkFailed transitions a command to failed.
	MarkFailed(ctx context.Context, id string) error

	// RecordAttempt increments the command's attempt counter after a
	// failed publish, leaving it queued for the next drain.
	RecordAttempt(ctx context.Context, id string) error
}

// SQLiteQueue implements Queue using SQLite.
type SQLiteQueue struct {
	db *sql.DB
}

// NewSQLiteQueue creates a new SQLite-backed command queue.
func NewSQLiteQueue(db *sql.DB) *SQLiteQueue {
	return &SQLiteQueue{db: db}
}

// Enqueue persists a command in queued status.
func (q *SQLiteQueue) Enqueue(ctx context.Context, cmd *Command) error {
	if cmd.FacilityID == "" || cmd.GatewayID == "" {
		return fmt.Errorf("%w: missing facility or gateway", ErrInvalidCommand)
	}
	if !cmd.Type.IsValid() {
		return fmt.Errorf("%w: type %q", ErrInvalidCommand, cmd.Type)
	}

	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	cmd.Status = StatusQueued
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}

	payload := cmd.Payload
	if payload == nil {
		payload = []byte("{}")
	}

	query := `
		INSERT INTO dispatch_queue (id, facility_id, gateway_id, device_id, command_type, payload, status, attempts, created_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, '')`

	_, err := q.db.ExecContext(ctx, query,
		cmd.ID,
		cmd.FacilityID,
		cmd.GatewayID,
		cmd.DeviceID,
		string(cmd.Type),
		string(payload),
		string(StatusQueued),
		cmd.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command: %w", err)
	}

	return nil
}

// ListQueued returns up to limit queued commands, oldest first.
func (q *SQLiteQueue) ListQueued(ctx context.Context, limit int) ([]Command, error) {
	query := `
		SELECT id, facility_id, gateway_id, device_id, command_type, payload, status, attempts, created_at, sent_at
		FROM dispatch_queue
		WHERE status = ?
		ORDER BY created_at
		LIMIT ?`

	rows, err := q.db.QueryContext(ctx, query, string(StatusQueued), limit)
	if err != nil {
		return nil, fmt.Errorf("querying queued commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var cmd Command
		var cmdType, status, payload, createdAt, sentAt string
		err := rows.Scan(
			&cmd.ID,
			&cmd.FacilityID,
			&cmd.GatewayID,
			&cmd.DeviceID,
			&cmdType,
			&payload,
			&status,
			&cmd.Attempts,
			&createdAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning command: %w", err)
		}

		cmd.Type = CommandType(cmdType)
		cmd.Status = Status(status)
		cmd.Payload = []byte(payload)

		cmd.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if sentAt != "" {
			t, err := time.Parse(time.RFC3339, sentAt)
			if err != nil {
				return nil, fmt.Errorf("parsing sent_at: %w", err)
			}
			cmd.SentAt = &t
		}

		commands = append(commands, cmd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}

	return commands, nil
}

// MarkSent transitions a command to sent and stamps the time.
func (q *SQLiteQueue) MarkSent(ctx context.Context, id string) error {
	query := "UPDATE dispatch_queue SET status = ?, sent_at = ? WHERE id = ?"
	result, err := q.db.ExecContext(ctx, query,
		string(StatusSent),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("marking command sent: %w", err)
	}
	return requireRow(result)
}

// MarkFailed transitions a command to failed.
func (q *SQLiteQueue) MarkFailed(ctx context.Context, id string) error {
	query := "UPDATE dispatch_queue SET status = ? WHERE id = ?"
	result, err := q.db.ExecContext(ctx, query, string(StatusFailed), id)
	if err != nil {
		return fmt.Errorf("marking command failed: %w", err)
	}
	return requireRow(result)
}

// RecordAttempt increments the command's attempt counter.
func (q *SQLiteQueue) RecordAttempt(ctx context.Context, id string) error {
	query := "UPDATE dispatch_queue SET attempts = attempts + 1 WHERE id = ?"
	result, err := q.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	return requireRow(result)
}

// requireRow returns ErrCommandNotFound if the statement affected no rows.
func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCommandNotFound
	}
	return nil
}
