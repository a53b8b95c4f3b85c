package routepass

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the route_passes table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE route_passes (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			audiences TEXT NOT NULL DEFAULT '[]',
			issued_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_route_passes_device ON route_passes(device_id, expires_at);
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

func testPass(id, deviceID string, expiresAt time.Time) *Pass {
	return &Pass{
		ID:        id,
		DeviceID:  deviceID,
		UserID:    "user-1",
		Audiences: []string{"lock:lock-1"},
		IssuedAt:  expiresAt.Add(-15 * time.Minute),
		ExpiresAt: expiresAt,
	}
}

func TestRecord_GetByID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.Record(ctx, testPass("jti-1", "dev-1", expiry)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "jti-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, "dev-1")
	}
	if !got.ExpiresAt.Equal(expiry) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expiry)
	}
	if len(got.Audiences) != 1 || got.Audiences[0] != "lock:lock-1" {
		t.Errorf("Audiences = %v, want [lock:lock-1]", got.Audiences)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrPassNotFound) {
		t.Errorf("GetByID() error = %v, want ErrPassNotFound", err)
	}
}

func TestLatestExpiry(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	early := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if err := repo.Record(ctx, testPass("jti-1", "dev-1", early)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := repo.Record(ctx, testPass("jti-2", "dev-1", late)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := repo.Record(ctx, testPass("jti-3", "dev-2", late.Add(time.Hour))); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := repo.LatestExpiry(ctx, "dev-1")
	if err != nil {
		t.Fatalf("LatestExpiry() error = %v", err)
	}
	if got == nil || !got.Equal(late) {
		t.Errorf("LatestExpiry() = %v, want %v", got, late)
	}
}

func TestLatestExpiryForUser(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	early := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Same user, two devices
	if err := repo.Record(ctx, testPass("jti-1", "dev-1", early)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := repo.Record(ctx, testPass("jti-2", "dev-2", late)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := repo.LatestExpiryForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("LatestExpiryForUser() error = %v", err)
	}
	if got == nil || !got.Equal(late) {
		t.Errorf("LatestExpiryForUser() = %v, want %v", got, late)
	}

	none, err := repo.LatestExpiryForUser(ctx, "user-9")
	if err != nil {
		t.Fatalf("LatestExpiryForUser() error = %v", err)
	}
	if none != nil {
		t.Errorf("LatestExpiryForUser() = %v, want nil for user with no passes", none)
	}
}

func TestLatestExpiry_NoPasses(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	got, err := repo.LatestExpiry(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("LatestExpiry() error = %v", err)
	}
	if got != nil {
		t.Errorf("LatestExpiry() = %v, want nil for device with no passes", got)
	}
}
