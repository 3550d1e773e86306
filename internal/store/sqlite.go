// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides principal/escalation/verification/activity/project persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
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

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
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
		CREATE TABLE IF NOT EXISTS principals (
			id             TEXT PRIMARY KEY,
			identity_key   TEXT NOT NULL UNIQUE,
			username       TEXT NOT NULL UNIQUE,
			email          TEXT NOT NULL UNIQUE,
			first_name     TEXT,
			last_name      TEXT,
			photo_url      TEXT,
			role           TEXT NOT NULL DEFAULT 'user',
			verified       INTEGER NOT NULL DEFAULT 0,
			session_token  TEXT UNIQUE,
			session_expiry TEXT,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL,

			CHECK (role IN ('user', 'admin')),
			CHECK ((session_token IS NULL) = (session_expiry IS NULL))
		);

		CREATE INDEX IF NOT EXISTS idx_principals_role ON principals(role);
		CREATE INDEX IF NOT EXISTS idx_principals_session ON principals(session_token);

		CREATE TABLE IF NOT EXISTS escalation_requests (
			subject_key TEXT PRIMARY KEY,
			email       TEXT NOT NULL,
			token       TEXT NOT NULL UNIQUE,
			approved    INTEGER NOT NULL DEFAULT 0,
			expires_at  TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_escalations_token ON escalation_requests(token);
		CREATE INDEX IF NOT EXISTS idx_escalations_expires ON escalation_requests(expires_at);

		CREATE TABLE IF NOT EXISTS verification_codes (
			email      TEXT PRIMARY KEY,
			code       TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_verifications_expires ON verification_codes(expires_at);

		CREATE TABLE IF NOT EXISTS activity_log (
			id          TEXT PRIMARY KEY,
			actor_key   TEXT NOT NULL,
			actor_email TEXT NOT NULL,
			action      TEXT NOT NULL,
			detail      TEXT,
			source_addr TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_activity_actor ON activity_log(actor_key);
		CREATE INDEX IF NOT EXISTS idx_activity_action ON activity_log(action);

		CREATE TABLE IF NOT EXISTS projects (
			id             TEXT PRIMARY KEY,
			owner_key      TEXT NOT NULL,
			title          TEXT NOT NULL,
			description    TEXT,
			location       TEXT,
			status         TEXT NOT NULL DEFAULT 'planning',
			floor_plan_url TEXT,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL,

			CHECK (status IN ('planning', 'in_progress', 'completed'))
		);

		CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_key);
		CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// Ping verifies the underlying database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed" in the error message
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "unique constraint"))
}
