package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// sharedKeyActive is the only shared_keys status that grants access.
const sharedKeyActive = "active"

// Repository defines read operations over the access model: units,
// tenancies, locks and shares. Key distribution and route pass issuance
// both resolve access through this interface.
type Repository interface {
	// Grants returns everything the user can currently open and why.
	// Direct tenancy grants come first, then active shares.
	Grants(ctx context.Context, userID string) ([]Grant, error)

	// GetLock retrieves a lock by ID.
	// Returns ErrLockNotFound if the lock does not exist.
	GetLock(ctx context.Context, id string) (*Lock, error)

	// TenantsWithUnitAccess returns the user IDs assigned to a unit.
	TenantsWithUnitAccess(ctx context.Context, unitID string) ([]string, error)

	// SharedKeysForLock returns the active shares on a lock.
	SharedKeysForLock(ctx context.Context, lockID string) ([]SharedKey, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const lockColumns = "id, unit_id, facility_id, gateway_id, name, device_type, key_version"

// Grants returns everything the user can currently open and why.
func (r *SQLiteRepository) Grants(ctx context.Context, userID string) ([]Grant, error) {
	direct, err := r.directGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	shared, err := r.sharedGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	return append(direct, shared...), nil
}

// directGrants resolves locks reachable through unit tenancies.
func (r *SQLiteRepository) directGrants(ctx context.Context, userID string) ([]Grant, error) {
	query := `
		SELECT l.id, l.unit_id, l.facility_id, l.gateway_id, l.name, l.device_type, l.key_version
		FROM locks l
		JOIN unit_assignments ua ON ua.unit_id = l.unit_id
		WHERE ua.tenant_id = ?
		ORDER BY l.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying direct grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lock: %w", err)
		}
		grants = append(grants, Grant{
			Lock:       *lock,
			TargetType: TargetLock,
			TargetID:   lock.ID,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating direct grants: %w", err)
	}

	return grants, nil
}

// sharedGrants resolves locks reachable through active shares.
func (r *SQLiteRepository) sharedGrants(ctx context.Context, userID string) ([]Grant, error) {
	query := `
		SELECT sk.id, sk.owner_id,
			l.id, l.unit_id, l.facility_id, l.gateway_id, l.name, l.device_type, l.key_version
		FROM shared_keys sk
		JOIN locks l ON l.id = sk.lock_id
		WHERE sk.shared_with_id = ? AND sk.status = ?
		ORDER BY sk.id`

	rows, err := r.db.QueryContext(ctx, query, userID, sharedKeyActive)
	if err != nil {
		return nil, fmt.Errorf("querying shared grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var sharedKeyID, ownerID string
		var lock Lock
		var deviceClass string
		var keyVersion int
		err := rows.Scan(
			&sharedKeyID,
			&ownerID,
			&lock.ID,
			&lock.UnitID,
			&lock.FacilityID,
			&lock.GatewayID,
			&lock.Name,
			&deviceClass,
			&keyVersion,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning shared grant: %w", err)
		}
		lock.DeviceClass = DeviceClass(deviceClass)
		lock.KeyVersion = KeyVersion(keyVersion)
		grants = append(grants, Grant{
			Lock:       lock,
			TargetType: TargetSharedKey,
			TargetID:   sharedKeyID,
			OwnerID:    ownerID,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shared grants: %w", err)
	}

	return grants, nil
}

// GetLock retrieves a lock by ID.
func (r *SQLiteRepository) GetLock(ctx context.Context, id string) (*Lock, error) {
	query := "SELECT " + lockColumns + " FROM locks WHERE id = ?"

	row := r.db.QueryRowContext(ctx, query, id)
	lock, err := scanLock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLockNotFound
		}
		return nil, fmt.Errorf("querying lock by id: %w", err)
	}
	return lock, nil
}

// TenantsWithUnitAccess returns the user IDs assigned to a unit.
func (r *SQLiteRepository) TenantsWithUnitAccess(ctx context.Context, unitID string) ([]string, error) {
	query := "SELECT tenant_id FROM unit_assignments WHERE unit_id = ? ORDER BY tenant_id"

	rows, err := r.db.QueryContext(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("querying unit tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, tenantID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenants: %w", err)
	}

	return tenants, nil
}

// SharedKeysForLock returns the active shares on a lock.
func (r *SQLiteRepository) SharedKeysForLock(ctx context.Context, lockID string) ([]SharedKey, error) {
	query := `
		SELECT id, owner_id, shared_with_id, lock_id, status
		FROM shared_keys
		WHERE lock_id = ? AND status = ?
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, lockID, sharedKeyActive)
	if err != nil {
		return nil, fmt.Errorf("querying shared keys: %w", err)
	}
	defer rows.Close()

	var keys []SharedKey
	for rows.Next() {
		var sk SharedKey
		if err := rows.Scan(&sk.ID, &sk.OwnerID, &sk.SharedWithID, &sk.LockID, &sk.Status); err != nil {
			return nil, fmt.Errorf("scanning shared key: %w", err)
		}
		keys = append(keys, sk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shared keys: %w", err)
	}

	return keys, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanLock scans a row or rows result into a Lock.
func scanLock(scanner rowScanner) (*Lock, error) {
	var lock Lock
	var deviceClass string
	var keyVersion int

	err := scanner.Scan(
		&lock.ID,
		&lock.UnitID,
		&lock.FacilityID,
		&lock.GatewayID,
		&lock.Name,
		&deviceClass,
		&keyVersion,
	)
	if err != nil {
		return nil, err
	}

	lock.DeviceClass = DeviceClass(deviceClass)
	lock.KeyVersion = KeyVersion(keyVersion)
	return &lock, nil
}
