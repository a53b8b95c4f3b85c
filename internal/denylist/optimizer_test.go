package denylist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockPassHistory implements PassHistory.
type mockPassHistory struct {
	mu       sync.Mutex
	expiries map[string]*time.Time
	err      error
}

func (m *mockPassHistory) LatestExpiryForUser(_ context.Context, userID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.expiries[userID], nil
}

func timePtr(t time.Time) *time.Time { return &t }

func newTestOptimizer(history *mockPassHistory, now time.Time) *Optimizer {
	o := NewOptimizer(history, nil)
	o.now = func() time.Time { return now }
	return o
}

func TestShouldSkipAdd(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry *time.Time
		want   bool
	}{
		{"never issued a pass", nil, true},
		{"latest pass expired", timePtr(now.Add(-time.Hour)), true},
		{"latest pass still live", timePtr(now.Add(time.Hour)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &mockPassHistory{expiries: map[string]*time.Time{"user-1": tt.expiry}}
			o := newTestOptimizer(history, now)

			if got := o.ShouldSkipAdd(context.Background(), "user-1"); got != tt.want {
				t.Errorf("ShouldSkipAdd() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldSkipAdd_FailsOpen(t *testing.T) {
	history := &mockPassHistory{err: errors.New("database locked")}
	o := newTestOptimizer(history, time.Now())

	// Lookup failure must send the command, never suppress a revocation
	if o.ShouldSkipAdd(context.Background(), "user-1") {
		t.Error("ShouldSkipAdd() = true on lookup failure, want false (fail open)")
	}
}

func TestShouldSkipRemove(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := newTestOptimizer(&mockPassHistory{}, now)

	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"permanent entry never skipped", Entry{Sub: "user-1", Exp: nil}, false},
		{"expired one second ago", Entry{Sub: "user-1", Exp: int64Ptr(now.Add(-time.Second).Unix())}, true},
		{"expires in the future", Entry{Sub: "user-1", Exp: int64Ptr(now.Add(time.Hour).Unix())}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.ShouldSkipRemove(tt.entry); got != tt.want {
				t.Errorf("ShouldSkipRemove() = %v, want %v", got, tt.want)
			}
		})
	}
}
