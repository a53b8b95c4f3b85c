package routepass

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Pass is the stored metadata of an issued route pass. The token itself
// is never persisted; the metadata exists so revocation can reason about
// which passes may still be in the wild.
type Pass struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	UserID    string    `json:"user_id"`
	Audiences []string  `json:"audiences"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Repository defines persistence for route pass metadata.
type Repository interface {
	// Record stores metadata for a newly issued pass.
	Record(ctx context.Context, pass *Pass) error

	// GetByID retrieves pass metadata by token ID.
	// Returns ErrPassNotFound if no such pass was issued.
	GetByID(ctx context.Context, id string) (*Pass, error)

	// LatestExpiry returns the latest expiry among passes issued to a
	// device, or nil if the device was never issued a pass. Revocation
	// uses this to bound how long denylist entries must live.
	LatestExpiry(ctx context.Context, deviceID string) (*time.Time, error)

	// LatestExpiryForUser returns the latest expiry among all passes
	// issued to a user across their devices, or nil if the user was
	// never issued a pass. The denylist optimizer uses this to decide
	// whether there is anything live to revoke.
	LatestExpiryForUser(ctx context.Context, userID string) (*time.Time, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record stores metadata for a newly issued pass.
func (r *SQLiteRepository) Record(ctx context.Context, pass *Pass) error {
	audiencesJSON, err := json.Marshal(pass.Audiences)
	if err != nil {
		return fmt.Errorf("marshalling audiences: %w", err)
	}

	query := `
		INSERT INTO route_passes (id, device_id, user_id, audiences, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		pass.ID,
		pass.DeviceID,
		pass.UserID,
		string(audiencesJSON),
		pass.IssuedAt.UTC().Format(time.RFC3339),
		pass.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting route pass: %w", err)
	}

	return nil
}

// GetByID retrieves pass metadata by token ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Pass, error) {
	query := `
		SELECT id, device_id, user_id, audiences, issued_at, expires_at
		FROM route_passes
		WHERE id = ?`

	var pass Pass
	var audiencesJSON, issuedAt, expiresAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pass.ID,
		&pass.DeviceID,
		&pass.UserID,
		&audiencesJSON,
		&issuedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, fmt.Errorf("querying route pass: %w", err)
	}

	if err := json.Unmarshal([]byte(audiencesJSON), &pass.Audiences); err != nil {
		return nil, fmt.Errorf("unmarshalling audiences: %w", err)
	}

	var parseErr error
	pass.IssuedAt, parseErr = time.Parse(time.RFC3339, issuedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing issued_at: %w", parseErr)
	}
	pass.ExpiresAt, parseErr = time.Parse(time.RFC3339, expiresAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", parseErr)
	}

	return &pass, nil
}

// LatestExpiry returns the latest expiry among passes issued to a device.
func (r *SQLiteRepository) LatestExpiry(ctx context.Context, deviceID string) (*time.Time, error) {
	return r.latestExpiry(ctx, "SELECT MAX(expires_at) FROM route_passes WHERE device_id = ?", deviceID)
}

// LatestExpiryForUser returns the latest expiry among a user's passes.
func (r *SQLiteRepository) LatestExpiryForUser(ctx context.Context, userID string) (*time.Time, error) {
	return r.latestExpiry(ctx, "SELECT MAX(expires_at) FROM route_passes WHERE user_id = ?", userID)
}

func (r *SQLiteRepository) latestExpiry(ctx context.Context, query string, arg string) (*time.Time, error) {
	var expiresAt sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&expiresAt)
	if err != nil {
		return nil, fmt.Errorf("querying latest expiry: %w", err)
	}
	if !expiresAt.Valid {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, expiresAt.String)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	return &t, nil
}
