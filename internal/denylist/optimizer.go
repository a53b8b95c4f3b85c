package denylist

import (
	"context"
	"time"
)

// PassHistory is the read the optimizer needs from route pass metadata.
type PassHistory interface {
	LatestExpiryForUser(ctx context.Context, userID string) (*time.Time, error)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Optimizer decides whether a denylist command is worth sending to the
// field. Its answers are advisory: the caller still persists the
// revocation record either way, the optimizer only saves gateway
// traffic when nothing live needs revoking.
type Optimizer struct {
	passes PassHistory
	logger Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewOptimizer creates a denylist optimizer. logger may be nil.
func NewOptimizer(passes PassHistory, logger Logger) *Optimizer {
	return &Optimizer{
		passes: passes,
		logger: logger,
		now:    time.Now,
	}
}

// ShouldSkipAdd reports whether a denylist add for the user can be
// skipped: true when the user has never been issued a route pass, or
// their most recent pass has already expired. With no live pass in the
// wild there is nothing for the denylist entry to reject; future passes
// are scoped to current entitlements at issue time.
//
// On lookup failure the answer is false: a missed revocation is worse
// than redundant traffic, so errors always send the command.
func (o *Optimizer) ShouldSkipAdd(ctx context.Context, userID string) bool {
	latest, err := o.passes.LatestExpiryForUser(ctx, userID)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("denylist skip check failed, sending command",
				"user_id", userID,
				"error", err,
			)
		}
		return false
	}

	if latest == nil {
		return true
	}
	return latest.Before(o.now())
}

// ShouldSkipRemove reports whether a denylist removal can be skipped:
// true only when the entry's expiry is set and already in the past, in
// which case the locks have expired it locally. A nil expiry is a
// permanent entry and must always be cleaned up explicitly.
func (o *Optimizer) ShouldSkipRemove(entry Entry) bool {
	if entry.Exp == nil {
		return false
	}
	return time.Unix(*entry.Exp, 0).Before(o.now())
}
