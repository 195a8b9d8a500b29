// Package store provides persistent storage for aplmint using SQLite.
//
// # Data Models
//
//   - QueryLogEntry: one row per successfully completed query, append-only.
//     Quota accounting counts these rows; failed or denied requests never
//     produce one.
//   - UserPreference: a user's selected completion model, one live row per
//     user with upsert (last write wins) semantics.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//
// Timestamps are stored as RFC3339 UTC strings, which order
// lexicographically, so day-range counting is a plain BETWEEN-style
// comparison on text.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist (e.g. no preference set)
//
// All methods accept context.Context for cancellation support. Any other
// error means the store itself failed; callers must treat that as an
// infrastructure failure, never as a zero count or missing preference.
//
// # Testing
//
// Use NewMockStore() for unit tests; its SetFailing toggle simulates an
// unreachable database. Use NewSQLiteStore(":memory:") for integration
// tests with real SQLite.
package store
