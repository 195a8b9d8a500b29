// ABOUTME: Store interface and data types for aplmint persistence
// ABOUTME: Defines QueryLogEntry, UserPreference and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// QueryLogEntry records one successfully completed query.
// Entries are append-only: they are written exactly once per completed
// request and never mutated or deleted.
type QueryLogEntry struct {
	ID        string
	UserID    int64
	Username  string // display label, may be empty
	ChatID    int64
	Model     string // provider model identifier used for this query
	CreatedAt time.Time
}

// UserPreference is a user's selected completion model.
// At most one live row per user; writes are upserts (last write wins).
type UserPreference struct {
	UserID    int64
	Model     string
	UpdatedAt time.Time
}

// Store defines the interface for query log and preference persistence.
// Implementations must be safe for concurrent use by independent in-flight
// requests.
type Store interface {
	// AppendQueryLog records a completed query. The entry's CreatedAt is
	// stored with second precision.
	AppendQueryLog(ctx context.Context, entry *QueryLogEntry) error

	// CountQueriesBetween returns the number of log entries for userID with
	// CreatedAt in [from, to). It must reflect every entry written before
	// the call began.
	CountQueriesBetween(ctx context.Context, userID int64, from, to time.Time) (int, error)

	// RecentQueries returns up to limit log entries for userID, newest first.
	RecentQueries(ctx context.Context, userID int64, limit int) ([]*QueryLogEntry, error)

	// GetPreference returns the stored model preference for userID, or
	// ErrNotFound if the user never selected a model.
	GetPreference(ctx context.Context, userID int64) (*UserPreference, error)

	// SetPreference upserts the model preference for userID.
	SetPreference(ctx context.Context, userID int64, model string) error

	// Close releases database resources
	Close() error
}
