// Package db manages the SQLite database connection and schema migrations.
// It exposes a Database struct that wraps *sql.DB and is passed via
// dependency injection to any layer that needs database access.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	// the underscore import registers the go-sqlite3 driver with
	// database/sql via its init() side effect; it is never referenced
	// directly.
	_ "github.com/mattn/go-sqlite3"
)

// Database wraps *sql.DB rather than embedding it, so the public surface of
// this package stays intentional: callers get the methods defined here, not
// the whole of database/sql.
type Database struct {
	connection *sql.DB
	logger     *slog.Logger
}

// schema is the SQL DDL for every table the persistent store owns per
// spec.md §6. The orchestrator only ever writes `deployments`; the rest
// exist so the schema matches what the external façade expects to find.
// IF NOT EXISTS makes this safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    email      TEXT UNIQUE NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS projects (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL,
    name          TEXT NOT NULL,
    git_repo_url  TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS git_accounts (
    user_id           TEXT NOT NULL,
    provider          TEXT NOT NULL,
    provider_user_id  TEXT NOT NULL,
    access_token      TEXT NOT NULL,
    PRIMARY KEY (user_id, provider)
);

CREATE TABLE IF NOT EXISTS deployments (
    id                 TEXT PRIMARY KEY,
    project_id         TEXT NOT NULL,
    status             TEXT NOT NULL,
    version            TEXT NOT NULL DEFAULT 'TBD',
    deployment_url     TEXT,
    internal_port      INTEGER,
    build_output_path  TEXT,
    dockerfile_used    TEXT NOT NULL DEFAULT 'unknown',
    error_message      TEXT,
    log_file_path      TEXT NOT NULL DEFAULT '',
    name               TEXT NOT NULL DEFAULT '',
    auto_deploy        INTEGER NOT NULL DEFAULT 0,
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_deployments_project_id ON deployments(project_id);
CREATE INDEX IF NOT EXISTS idx_deployments_status ON deployments(status);

CREATE TABLE IF NOT EXISTS domains (
    id          TEXT PRIMARY KEY,
    project_id  TEXT NOT NULL,
    hostname    TEXT UNIQUE NOT NULL,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ssl_certificates (
    id         TEXT PRIMARY KEY,
    domain_id  TEXT NOT NULL,
    issued_at  DATETIME NOT NULL,
    expires_at DATETIME NOT NULL
);
`

// migrate runs the schema DDL against the database. It creates whatever
// tables/columns/indexes don't already exist; it never drops or alters.
func (database *Database) migrate() error {
	_, err := database.connection.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema migration: %w", err)
	}
	return nil
}

// OpenDatabase opens the SQLite database at dbPath, runs the schema
// migration, and returns a ready-to-use *Database. The parent directory of
// dbPath is created if it does not exist.
func OpenDatabase(dbPath string, logger *slog.Logger) (*Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
	}

	dbConnection, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %q: %w", dbPath, err)
	}

	// SQLite does not support concurrent writers. Capping the pool at one
	// connection avoids "database is locked" errors under the admission
	// queue's worker pool, at the cost of serializing all reads too — an
	// acceptable trade for a single-node control plane.
	dbConnection.SetMaxOpenConns(1)

	database := &Database{
		connection: dbConnection,
		logger:     logger,
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	logger.Info("database opened and schema migrated", "path", dbPath)
	return database, nil
}

// Ping verifies the database connection is alive, for the readiness
// endpoint to report on.
func (database *Database) Ping() error {
	return database.connection.Ping()
}

// CloseDatabase releases the database connection pool.
func (database *Database) CloseDatabase() error {
	return database.connection.Close()
}
