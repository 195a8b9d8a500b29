// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides query log and preference persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS query_log (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			username TEXT,
			chat_id INTEGER NOT NULL,
			model TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_query_log_user_created
			ON query_log(user_id, created_at);

		CREATE TABLE IF NOT EXISTS user_preferences (
			user_id INTEGER PRIMARY KEY,
			model TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// AppendQueryLog records a completed query.
func (s *SQLiteStore) AppendQueryLog(ctx context.Context, entry *QueryLogEntry) error {
	query := `
		INSERT INTO query_log (id, user_id, username, chat_id, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		nullString(entry.Username),
		entry.ChatID,
		entry.Model,
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting query log entry: %w", err)
	}

	s.logger.Debug("appended query log entry",
		"id", entry.ID,
		"user_id", entry.UserID,
		"model", entry.Model,
	)
	return nil
}

// CountQueriesBetween counts log entries for a user in [from, to).
// Timestamps are stored as RFC3339 UTC strings, which compare
// lexicographically in timestamp order.
func (s *SQLiteStore) CountQueriesBetween(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM query_log
		WHERE user_id = ? AND created_at >= ? AND created_at < ?
	`

	var count int
	err := s.db.QueryRowContext(ctx, query,
		userID,
		from.UTC().Format(time.RFC3339),
		to.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting queries: %w", err)
	}
	return count, nil
}

// RecentQueries returns up to limit log entries for a user, newest first.
func (s *SQLiteStore) RecentQueries(ctx context.Context, userID int64, limit int) ([]*QueryLogEntry, error) {
	query := `
		SELECT id, user_id, username, chat_id, model, created_at
		FROM query_log
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*QueryLogEntry
	for rows.Next() {
		var entry QueryLogEntry
		var username sql.NullString
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.UserID, &username, &entry.ChatID, &entry.Model, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning query log row: %w", err)
		}
		entry.Username = username.String
		entry.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query log rows: %w", err)
	}
	return entries, nil
}

// GetPreference returns the stored model preference for a user.
func (s *SQLiteStore) GetPreference(ctx context.Context, userID int64) (*UserPreference, error) {
	query := `SELECT user_id, model, updated_at FROM user_preferences WHERE user_id = ?`

	var pref UserPreference
	var updatedAt string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&pref.UserID, &pref.Model, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying preference: %w", err)
	}

	pref.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &pref, nil
}

// SetPreference upserts the model preference for a user.
func (s *SQLiteStore) SetPreference(ctx context.Context, userID int64, model string) error {
	query := `
		INSERT INTO user_preferences (user_id, model, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			model = excluded.model,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, userID, model, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting preference: %w", err)
	}

	s.logger.Debug("set model preference", "user_id", userID, "model", model)
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nullString converts an empty string to a NULL-able sql value
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
