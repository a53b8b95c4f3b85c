package access

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the access tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE units (
			id TEXT PRIMARY KEY,
			facility_id TEXT NOT NULL,
			unit_number TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT ''
		) STRICT;
		CREATE TABLE unit_assignments (
			id TEXT PRIMARY KEY,
			unit_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			is_primary INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT ''
		) STRICT;
		CREATE TABLE locks (
			id TEXT PRIMARY KEY,
			unit_id TEXT NOT NULL,
			facility_id TEXT NOT NULL,
			gateway_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			device_type TEXT NOT NULL DEFAULT 'blulok',
			key_version INTEGER NOT NULL DEFAULT 2,
			created_at TEXT NOT NULL DEFAULT ''
		) STRICT;
		CREATE TABLE shared_keys (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			shared_with_id TEXT NOT NULL,
			lock_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL DEFAULT ''
		) STRICT;
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// seedAccessModel inserts a small facility: user-1 rents unit-1 (lock-1),
// user-2 rents unit-2 (lock-2) and shares lock-2 with user-1.
func seedAccessModel(t *testing.T, db *sql.DB) {
	t.Helper()

	stmts := []string{
		`INSERT INTO units (id, facility_id, unit_number) VALUES ('unit-1', 'fac-1', 'A101')`,
		`INSERT INTO units (id, facility_id, unit_number) VALUES ('unit-2', 'fac-1', 'A102')`,
		`INSERT INTO unit_assignments (id, unit_id, tenant_id, is_primary) VALUES ('ua-1', 'unit-1', 'user-1', 1)`,
		`INSERT INTO unit_assignments (id, unit_id, tenant_id, is_primary) VALUES ('ua-2', 'unit-2', 'user-2', 1)`,
		`INSERT INTO locks (id, unit_id, facility_id, gateway_id, key_version) VALUES ('lock-1', 'unit-1', 'fac-1', 'gw-1', 2)`,
		`INSERT INTO locks (id, unit_id, facility_id, gateway_id, key_version) VALUES ('lock-2', 'unit-2', 'fac-1', 'gw-1', 2)`,
		`INSERT INTO shared_keys (id, owner_id, shared_with_id, lock_id, status) VALUES ('sk-1', 'user-2', 'user-1', 'lock-2', 'active')`,
		`INSERT INTO shared_keys (id, owner_id, shared_with_id, lock_id, status) VALUES ('sk-2', 'user-2', 'user-3', 'lock-2', 'revoked')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seeding access model: %v", err)
		}
	}
}

func TestGrants(t *testing.T) {
	db := setupTestDB(t)
	seedAccessModel(t, db)
	repo := NewSQLiteRepository(db)

	grants, err := repo.Grants(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Grants() error = %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("Grants() returned %d grants, want 2", len(grants))
	}

	// Direct tenancy grant first
	if grants[0].TargetType != TargetLock || grants[0].Lock.ID != "lock-1" {
		t.Errorf("first grant = %+v, want direct grant on lock-1", grants[0])
	}

	// Shared grant second, carrying the owner for the audience
	if grants[1].TargetType != TargetSharedKey || grants[1].TargetID != "sk-1" {
		t.Errorf("second grant = %+v, want shared grant sk-1", grants[1])
	}
	if grants[1].OwnerID != "user-2" {
		t.Errorf("shared grant owner = %q, want %q", grants[1].OwnerID, "user-2")
	}
}

func TestGrants_RevokedShareExcluded(t *testing.T) {
	db := setupTestDB(t)
	seedAccessModel(t, db)
	repo := NewSQLiteRepository(db)

	grants, err := repo.Grants(context.Background(), "user-3")
	if err != nil {
		t.Fatalf("Grants() error = %v", err)
	}
	if len(grants) != 0 {
		t.Errorf("Grants() returned %d grants for revoked share, want 0", len(grants))
	}
}

func TestGetLock(t *testing.T) {
	db := setupTestDB(t)
	seedAccessModel(t, db)
	repo := NewSQLiteRepository(db)

	lock, err := repo.GetLock(context.Background(), "lock-1")
	if err != nil {
		t.Fatalf("GetLock() error = %v", err)
	}
	if lock.UnitID != "unit-1" || lock.GatewayID != "gw-1" {
		t.Errorf("GetLock() = %+v, want unit-1/gw-1", lock)
	}
	if lock.KeyVersion != KeyV2 {
		t.Errorf("KeyVersion = %d, want %d", lock.KeyVersion, KeyV2)
	}
}

func TestGetLock_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetLock(context.Background(), "missing")
	if !errors.Is(err, ErrLockNotFound) {
		t.Errorf("GetLock() error = %v, want ErrLockNotFound", err)
	}
}

func TestTenantsWithUnitAccess(t *testing.T) {
	db := setupTestDB(t)
	seedAccessModel(t, db)
	repo := NewSQLiteRepository(db)

	tenants, err := repo.TenantsWithUnitAccess(context.Background(), "unit-1")
	if err != nil {
		t.Fatalf("TenantsWithUnitAccess() error = %v", err)
	}
	if len(tenants) != 1 || tenants[0] != "user-1" {
		t.Errorf("TenantsWithUnitAccess() = %v, want [user-1]", tenants)
	}
}

func TestSharedKeysForLock(t *testing.T) {
	db := setupTestDB(t)
	seedAccessModel(t, db)
	repo := NewSQLiteRepository(db)

	keys, err := repo.SharedKeysForLock(context.Background(), "lock-2")
	if err != nil {
		t.Fatalf("SharedKeysForLock() error = %v", err)
	}
	if len(keys) != 1 || keys[0].ID != "sk-1" {
		t.Errorf("SharedKeysForLock() = %v, want only active share sk-1", keys)
	}
}

func TestGrant_Audience(t *testing.T) {
	direct := Grant{
		Lock:       Lock{ID: "lock-1"},
		TargetType: TargetLock,
		TargetID:   "lock-1",
	}
	if got := direct.Audience(); got != "lock:lock-1" {
		t.Errorf("direct Audience() = %q, want %q", got, "lock:lock-1")
	}

	shared := Grant{
		Lock:       Lock{ID: "lock-2"},
		TargetType: TargetSharedKey,
		TargetID:   "sk-1",
		OwnerID:    "user-2",
	}
	if got := shared.Audience(); got != "shared_key:user-2:lock-2" {
		t.Errorf("shared Audience() = %q, want %q", got, "shared_key:user-2:lock-2")
	}
}

func TestAudiences(t *testing.T) {
	grants := []Grant{
		{Lock: Lock{ID: "lock-1"}, TargetType: TargetLock, TargetID: "lock-1"},
		{Lock: Lock{ID: "lock-2"}, TargetType: TargetSharedKey, TargetID: "sk-1", OwnerID: "user-2"},
	}

	got := Audiences(grants)
	want := []string{"lock:lock-1", "shared_key:user-2:lock-2"}
	if len(got) != len(want) {
		t.Fatalf("Audiences() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Audiences()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
