package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for user device persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*UserDevice, error)

	// ListByUser retrieves all devices belonging to a user.
	ListByUser(ctx context.Context, userID string) ([]UserDevice, error)

	// ListReconcilableByUser retrieves the user's devices that should
	// hold keys (status pending_key or active).
	ListReconcilableByUser(ctx context.Context, userID string) ([]UserDevice, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, d *UserDevice) error

	// UpdateStatus changes a device's lifecycle status.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// UpdatePublicKey records the device public key after enrolment.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdatePublicKey(ctx context.Context, id string, publicKey string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = "id, user_id, name, public_key, status, created_at, updated_at"

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*UserDevice, error) {
	query := "SELECT " + deviceColumns + " FROM user_devices WHERE id = ?"

	row := r.db.QueryRowContext(ctx, query, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// ListByUser retrieves all devices belonging to a user.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]UserDevice, error) {
	query := "SELECT " + deviceColumns + " FROM user_devices WHERE user_id = ? ORDER BY created_at"
	return r.queryDevices(ctx, query, userID)
}

// ListReconcilableByUser retrieves the user's devices that should hold keys.
func (r *SQLiteRepository) ListReconcilableByUser(ctx context.Context, userID string) ([]UserDevice, error) {
	query := "SELECT " + deviceColumns + ` FROM user_devices
		WHERE user_id = ? AND status IN (?, ?)
		ORDER BY created_at`
	return r.queryDevices(ctx, query, userID, string(StatusPendingKey), string(StatusActive))
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *UserDevice) error {
	if !d.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	query := `
		INSERT INTO user_devices (id, user_id, name, public_key, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.UserID,
		d.Name,
		d.PublicKey,
		string(d.Status),
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// UpdateStatus changes a device's lifecycle status.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	query := "UPDATE user_devices SET status = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query,
		string(status),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}

	return requireRow(result, ErrDeviceNotFound)
}

// UpdatePublicKey records the device public key after enrolment.
func (r *SQLiteRepository) UpdatePublicKey(ctx context.Context, id string, publicKey string) error {
	query := "UPDATE user_devices SET public_key = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query,
		publicKey,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device public key: %w", err)
	}

	return requireRow(result, ErrDeviceNotFound)
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]UserDevice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []UserDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a UserDevice.
func scanDevice(scanner rowScanner) (*UserDevice, error) {
	var d UserDevice
	var status string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.UserID,
		&d.Name,
		&d.PublicKey,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = Status(status)

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// requireRow returns notFound if the statement affected no rows.
func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
