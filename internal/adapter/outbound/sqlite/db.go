// Package sqlite provides durable store implementations backed by SQLite
// via database/sql and the modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens the SQLite database at path with foreign keys on, creating
// parent directories as needed.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite handles one writer at a time; a larger pool only produces
	// SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS policies (
			workspace_id TEXT NOT NULL,
			client_id TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL,
			allowed_actions TEXT NOT NULL,
			auto_execute INTEGER NOT NULL,
			auto_execute_max_risk TEXT NOT NULL,
			max_actions_per_day INTEGER NOT NULL,
			require_approval_above_score INTEGER NOT NULL,
			respect_early_warnings INTEGER NOT NULL,
			pause_on_high_severity INTEGER NOT NULL,
			guard_rules TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			updated_by TEXT,
			PRIMARY KEY (workspace_id, client_id)
		)`,
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			client_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			payload TEXT,
			risk_level TEXT NOT NULL,
			risk_score REAL NOT NULL,
			risk_factors TEXT,
			status TEXT NOT NULL,
			approved_by TEXT,
			approved_at TIMESTAMP,
			rejection_reason TEXT,
			executed_at TIMESTAMP,
			execution_result TEXT,
			mode TEXT NOT NULL,
			truth_compliant INTEGER NOT NULL,
			disclaimers TEXT,
			confidence REAL NOT NULL,
			data_sources TEXT,
			triggering_warning_id TEXT,
			reasoning TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_workspace_status
			ON actions(workspace_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_session
			ON actions(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_client
			ON actions(workspace_id, client_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			client_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			messages TEXT,
			actions_proposed INTEGER NOT NULL DEFAULT 0,
			actions_executed INTEGER NOT NULL DEFAULT 0,
			actions_rejected INTEGER NOT NULL DEFAULT 0,
			avg_risk_score REAL NOT NULL DEFAULT 0,
			avg_truth_score REAL NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_workspace
			ON sessions(workspace_id, started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
