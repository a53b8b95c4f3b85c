package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the user_devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE user_devices (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			public_key TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_user_devices_user ON user_devices(user_id, status);
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

// testDevice creates a device for testing.
func testDevice(id, userID string) *UserDevice {
	return &UserDevice{
		ID:        id,
		UserID:    userID,
		Name:      "Test Phone",
		PublicKey: "a1b2c3d4",
		Status:    StatusActive,
	}
}

func TestCreate_GetByID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("dev-1", "user-1")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", got.UserID, "user-1")
	}
	if got.Status != StatusActive {
		t.Errorf("Status = %q, want %q", got.Status, StatusActive)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps were not set on create")
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("dev-1", "user-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, testDevice("dev-1", "user-1"))
	if !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create() duplicate error = %v, want ErrDeviceExists", err)
	}
}

func TestCreate_InvalidStatus(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	d := testDevice("dev-1", "user-1")
	d.Status = "bogus"
	err := repo.Create(context.Background(), d)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Create() error = %v, want ErrInvalidStatus", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestListByUser(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"dev-1", "dev-2"} {
		if err := repo.Create(ctx, testDevice(id, "user-1")); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	if err := repo.Create(ctx, testDevice("dev-3", "user-2")); err != nil {
		t.Fatalf("Create(dev-3) error = %v", err)
	}

	devices, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("ListByUser() returned %d devices, want 2", len(devices))
	}
}

func TestListReconcilableByUser(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	// Active: reconcilable
	if err := repo.Create(ctx, testDevice("dev-1", "user-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Pending key: reconcilable (keys land before activation)
	pending := testDevice("dev-2", "user-1")
	pending.Status = StatusPendingKey
	if err := repo.Create(ctx, pending); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Revoked: skipped
	revoked := testDevice("dev-3", "user-1")
	revoked.Status = StatusRevoked
	if err := repo.Create(ctx, revoked); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	devices, err := repo.ListReconcilableByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListReconcilableByUser() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("ListReconcilableByUser() returned %d devices, want 2", len(devices))
	}
	for _, d := range devices {
		if d.ID == "dev-3" {
			t.Error("revoked device returned as reconcilable")
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("dev-1", "user-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdateStatus(ctx, "dev-1", StatusRevoked); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusRevoked {
		t.Errorf("Status = %q, want %q", got.Status, StatusRevoked)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.UpdateStatus(context.Background(), "missing", StatusActive)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateStatus() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestUpdatePublicKey(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("dev-1", "user-1")
	d.PublicKey = ""
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdatePublicKey(ctx, "dev-1", "deadbeef"); err != nil {
		t.Fatalf("UpdatePublicKey() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PublicKey != "deadbeef" {
		t.Errorf("PublicKey = %q, want %q", got.PublicKey, "deadbeef")
	}
	if !got.HasPublicKey() {
		t.Error("HasPublicKey() = false after UpdatePublicKey")
	}
}

func TestStatus_IsReconcilable(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPendingKey, true},
		{StatusActive, true},
		{StatusRevoked, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsReconcilable(); got != tt.want {
			t.Errorf("%s.IsReconcilable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
