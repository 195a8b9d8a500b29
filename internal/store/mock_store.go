// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to simulate store outages

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrUnavailable simulates an unreachable persistent store.
var ErrUnavailable = errors.New("store unavailable")

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	entries []*QueryLogEntry         // append-only query log
	prefs   map[int64]*UserPreference // keyed by user ID

	// failing makes every operation return ErrUnavailable, simulating an
	// unreachable database.
	failing bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		prefs: make(map[int64]*UserPreference),
	}
}

// SetFailing toggles simulated store unavailability.
func (m *MockStore) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// AppendQueryLog records a completed query.
func (m *MockStore) AppendQueryLog(ctx context.Context, entry *QueryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return ErrUnavailable
	}

	// Make a copy to avoid external modification
	e := *entry
	m.entries = append(m.entries, &e)
	return nil
}

// CountQueriesBetween counts log entries for a user in [from, to).
func (m *MockStore) CountQueriesBetween(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing {
		return 0, ErrUnavailable
	}

	count := 0
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

// RecentQueries returns up to limit log entries for a user, newest first.
func (m *MockStore) RecentQueries(ctx context.Context, userID int64, limit int) ([]*QueryLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing {
		return nil, ErrUnavailable
	}

	var entries []*QueryLogEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			c := *e
			entries = append(entries, &c)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// GetPreference returns the stored model preference for a user.
func (m *MockStore) GetPreference(ctx context.Context, userID int64) (*UserPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing {
		return nil, ErrUnavailable
	}

	pref, ok := m.prefs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	p := *pref
	return &p, nil
}

// SetPreference upserts the model preference for a user.
func (m *MockStore) SetPreference(ctx context.Context, userID int64, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return ErrUnavailable
	}

	m.prefs[userID] = &UserPreference{
		UserID:    userID,
		Model:     model,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
