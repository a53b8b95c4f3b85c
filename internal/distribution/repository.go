package distribution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blulok/blulok-core/internal/access"
)

// Repository defines persistence for distribution rows. All writes are
// scoped by row id or by (device, status) predicates so concurrent
// reconciliation triggers cannot corrupt each other's rows.
type Repository interface {
	// Insert persists a new distribution row. A missing ID is assigned.
	Insert(ctx context.Context, d *Distribution) error

	// GetByID retrieves a row by ID.
	// Returns ErrDistributionNotFound if the row does not exist.
	GetByID(ctx context.Context, id string) (*Distribution, error)

	// ListActiveByDevice returns the device's non-removed rows: the
	// set a diff reconciles against.
	ListActiveByDevice(ctx context.Context, deviceID string) ([]Distribution, error)

	// ListPending returns up to limit pending rows due for processing
	// at the given instant, oldest first. Rows backing off are
	// excluded until their next attempt time passes.
	ListPending(ctx context.Context, limit int, now time.Time) ([]Distribution, error)

	// MarkAdded transitions a row to added, clearing retry state.
	MarkAdded(ctx context.Context, id string) error

	// MarkRemoved transitions a row to removed.
	MarkRemoved(ctx context.Context, id string) error

	// MarkPendingRemove transitions a row to pending_remove.
	MarkPendingRemove(ctx context.Context, id string) error

	// FlipToAdded cancels a pending removal by flipping the row back
	// to added in place. Returns ErrDistributionNotFound if the row is
	// not currently pending_remove.
	FlipToAdded(ctx context.Context, id string) error

	// MarkFailed dead-letters a row with the error preserved.
	MarkFailed(ctx context.Context, id string, message string) error

	// RecordFailure captures a retryable failure: increments
	// retry_count, stores the error and attempt time, and schedules
	// the next attempt.
	RecordFailure(ctx context.Context, id string, message string, attemptAt, nextAttempt time.Time) error

	// CountByDeviceStatus counts the device's rows in a status.
	CountByDeviceStatus(ctx context.Context, deviceID string, status Status) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const distributionColumns = "id, user_device_id, target_type, target_id, gateway_id, key_version, status, retry_count, error, last_attempt_at, next_attempt_at, created_at, updated_at"

// Insert persists a new distribution row.
func (r *SQLiteRepository) Insert(ctx context.Context, d *Distribution) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	query := `
		INSERT INTO device_key_distributions (` + distributionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.UserDeviceID,
		string(d.TargetType),
		d.TargetID,
		d.GatewayID,
		int(d.KeyVersion),
		string(d.Status),
		d.RetryCount,
		d.Error,
		formatNullableTime(d.LastAttemptAt),
		formatNullableTime(d.NextAttemptAt),
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting distribution: %w", err)
	}

	return nil
}

// GetByID retrieves a row by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Distribution, error) {
	query := "SELECT " + distributionColumns + " FROM device_key_distributions WHERE id = ?"

	d, err := scanDistribution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDistributionNotFound
		}
		return nil, fmt.Errorf("querying distribution by id: %w", err)
	}
	return d, nil
}

// ListActiveByDevice returns the device's non-removed rows.
func (r *SQLiteRepository) ListActiveByDevice(ctx context.Context, deviceID string) ([]Distribution, error) {
	query := `
		SELECT ` + distributionColumns + `
		FROM device_key_distributions
		WHERE user_device_id = ? AND status != ?
		ORDER BY created_at`

	return r.queryDistributions(ctx, query, deviceID, string(StatusRemoved))
}

// ListPending returns up to limit pending rows due at the given instant.
func (r *SQLiteRepository) ListPending(ctx context.Context, limit int, now time.Time) ([]Distribution, error) {
	query := `
		SELECT ` + distributionColumns + `
		FROM device_key_distributions
		WHERE status IN (?, ?) AND (next_attempt_at = '' OR next_attempt_at <= ?)
		ORDER BY created_at
		LIMIT ?`

	return r.queryDistributions(ctx, query,
		string(StatusPendingAdd),
		string(StatusPendingRemove),
		now.UTC().Format(time.RFC3339),
		limit,
	)
}

// MarkAdded transitions a row to added, clearing retry state.
func (r *SQLiteRepository) MarkAdded(ctx context.Context, id string) error {
	query := `
		UPDATE device_key_distributions
		SET status = ?, error = '', next_attempt_at = '', updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, string(StatusAdded), nowRFC3339(), id)
	if err != nil {
		return fmt.Errorf("marking distribution added: %w", err)
	}
	return requireRow(result)
}

// MarkRemoved transitions a row to removed.
func (r *SQLiteRepository) MarkRemoved(ctx context.Context, id string) error {
	query := `
		UPDATE device_key_distributions
		SET status = ?, error = '', next_attempt_at = '', updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, string(StatusRemoved), nowRFC3339(), id)
	if err != nil {
		return fmt.Errorf("marking distribution removed: %w", err)
	}
	return requireRow(result)
}

// MarkPendingRemove transitions a row to pending_remove.
func (r *SQLiteRepository) MarkPendingRemove(ctx context.Context, id string) error {
	query := `
		UPDATE device_key_distributions
		SET status = ?, retry_count = 0, error = '', next_attempt_at = '', updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, string(StatusPendingRemove), nowRFC3339(), id)
	if err != nil {
		return fmt.Errorf("marking distribution pending remove: %w", err)
	}
	return requireRow(result)
}

// FlipToAdded cancels a pending removal in place.
func (r *SQLiteRepository) FlipToAdded(ctx context.Context, id string) error {
	query := `
		UPDATE device_key_distributions
		SET status = ?, retry_count = 0, error = '', next_attempt_at = '', updated_at = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(StatusAdded),
		nowRFC3339(),
		id,
		string(StatusPendingRemove),
	)
	if err != nil {
		return fmt.Errorf("cancelling pending removal: %w", err)
	}
	return requireRow(result)
}

// MarkFailed dead-letters a row with the error preserved.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id string, message string) error {
	query := `
		UPDATE device_key_distributions
		SET status = ?, error = ?, last_attempt_at = ?, next_attempt_at = '', updated_at = ?
		WHERE id = ?`

	now := nowRFC3339()
	result, err := r.db.ExecContext(ctx, query, string(StatusFailed), message, now, now, id)
	if err != nil {
		return fmt.Errorf("marking distribution failed: %w", err)
	}
	return requireRow(result)
}

// RecordFailure captures a retryable failure and schedules the retry.
func (r *SQLiteRepository) RecordFailure(ctx context.Context, id string, message string, attemptAt, nextAttempt time.Time) error {
	query := `
		UPDATE device_key_distributions
		SET retry_count = retry_count + 1, error = ?, last_attempt_at = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		message,
		attemptAt.UTC().Format(time.RFC3339),
		nextAttempt.UTC().Format(time.RFC3339),
		nowRFC3339(),
		id,
	)
	if err != nil {
		return fmt.Errorf("recording distribution failure: %w", err)
	}
	return requireRow(result)
}

// CountByDeviceStatus counts the device's rows in a status.
func (r *SQLiteRepository) CountByDeviceStatus(ctx context.Context, deviceID string, status Status) (int, error) {
	query := "SELECT COUNT(*) FROM device_key_distributions WHERE user_device_id = ? AND status = ?"

	var count int
	err := r.db.QueryRowContext(ctx, query, deviceID, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting distributions: %w", err)
	}
	return count, nil
}

func (r *SQLiteRepository) queryDistributions(ctx context.Context, query string, args ...any) ([]Distribution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying distributions: %w", err)
	}
	defer rows.Close()

	var distributions []Distribution
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning distribution: %w", err)
		}
		distributions = append(distributions, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating distributions: %w", err)
	}

	return distributions, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDistribution(scanner rowScanner) (*Distribution, error) {
	var d Distribution
	var targetType, status string
	var keyVersion int
	var lastAttemptAt, nextAttemptAt, createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.UserDeviceID,
		&targetType,
		&d.TargetID,
		&d.GatewayID,
		&keyVersion,
		&status,
		&d.RetryCount,
		&d.Error,
		&lastAttemptAt,
		&nextAttemptAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.TargetType = access.DeviceClass(targetType)
	d.KeyVersion = access.KeyVersion(keyVersion)
	d.Status = Status(status)

	if d.LastAttemptAt, err = parseNullableTime(lastAttemptAt); err != nil {
		return nil, fmt.Errorf("parsing last_attempt_at: %w", err)
	}
	if d.NextAttemptAt, err = parseNullableTime(nextAttemptAt); err != nil {
		return nil, fmt.Errorf("parsing next_attempt_at: %w", err)
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &d, nil
}

func formatNullableTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullableTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// requireRow returns ErrDistributionNotFound if the statement affected
// no rows.
func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDistributionNotFound
	}
	return nil
}
