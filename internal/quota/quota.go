// ABOUTME: Daily quota tracking against the persistent query log.
// ABOUTME: Counts a user's completed queries for the current calendar day.

package quota

import (
	"context"
	"fmt"
	"time"
)

// DefaultDailyLimit is the number of completed queries a user is allowed per
// calendar day when the config does not override it.
const DefaultDailyLimit = 10

// CountStore is what the tracker needs from storage.
type CountStore interface {
	CountQueriesBetween(ctx context.Context, userID int64, from, to time.Time) (int, error)
}

// Tracker answers whether a user has exceeded today's allowance. Every call
// re-reads the store; there is no caching across admission decisions.
type Tracker struct {
	store CountStore
	limit int
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the tracker's time source. Used by tests to cross day
// boundaries deterministically.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New creates a Tracker with the given daily limit. A limit <= 0 falls back
// to DefaultDailyLimit.
func New(store CountStore, limit int, opts ...Option) *Tracker {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	t := &Tracker{
		store: store,
		limit: limit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Limit returns the configured daily limit.
func (t *Tracker) Limit() int {
	return t.limit
}

// CountToday returns the number of queries the user completed today, in the
// clock's local time zone. A store failure is returned as an error, never as
// a zero count: a silent zero would bypass the limit.
func (t *Tracker) CountToday(ctx context.Context, userID int64) (int, error) {
	now := t.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 1)

	count, err := t.store.CountQueriesBetween(ctx, userID, from, to)
	if err != nil {
		return 0, fmt.Errorf("counting today's queries: %w", err)
	}
	return count, nil
}

// Exceeded reports whether the user is at or above the daily limit.
func (t *Tracker) Exceeded(ctx context.Context, userID int64) (bool, error) {
	count, err := t.CountToday(ctx, userID)
	if err != nil {
		return false, err
	}
	return count >= t.limit, nil
}
