// Package migrations holds small, idempotent schema steps for the pipelines
// database, directly modeled on steveyegge-beads' own
// internal/storage/sqlite/migrations package: each step checks the current
// schema with PRAGMA table_info / sqlite_master before touching it, so
// re-running the full list on every boot is always safe.
package migrations

import (
	"database/sql"
	"fmt"
)

// InitSchema creates the pipeline, pipeline_schedule and pipeline_run
// tables with the referential integrity and check constraints spec.md §3
// requires, if they do not already exist.
func InitSchema(db *sql.DB) error {
	var exists string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='pipeline'`).Scan(&exists)
	if err == nil {
		return nil // already initialized
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("checking schema: %w", err)
	}

	stmts := []string{
		`CREATE TABLE pipeline (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE CHECK (name != ''),
			py_name TEXT NOT NULL CHECK (py_name != ''),
			dir_name TEXT NOT NULL CHECK (dir_name != ''),
			py_timestamp REAL NOT NULL,
			UNIQUE (py_name, dir_name)
		)`,
		`CREATE TABLE pipeline_schedule (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pipeline_id INTEGER NOT NULL REFERENCES pipeline(id) ON DELETE CASCADE,
			cron TEXT NOT NULL DEFAULT '',
			at TEXT NOT NULL DEFAULT '',
			paused INTEGER NOT NULL DEFAULT 0,
			retry_on_crash INTEGER NOT NULL DEFAULT 0,
			retry_num INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 0,
			latest_run INTEGER REFERENCES pipeline_run(id) ON DELETE SET NULL,
			CHECK (NOT (cron != '' AND at != ''))
		)`,
		`CREATE TABLE pipeline_run (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pipeline_id INTEGER NOT NULL REFERENCES pipeline(id) ON DELETE CASCADE,
			schedule_id INTEGER NOT NULL REFERENCES pipeline_schedule(id) ON DELETE CASCADE,
			status TEXT NOT NULL CHECK (status != ''),
			stage INTEGER NOT NULL DEFAULT 0,
			stage_msg TEXT NOT NULL DEFAULT '',
			exit_msg TEXT NOT NULL DEFAULT '',
			start_time TEXT NOT NULL CHECK (start_time != ''),
			end_time TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX idx_pipeline_schedule_pipeline_id ON pipeline_schedule(pipeline_id)`,
		`CREATE INDEX idx_pipeline_run_schedule_id ON pipeline_run(schedule_id)`,
		`CREATE INDEX idx_pipeline_run_pipeline_id ON pipeline_run(pipeline_id)`,
	}

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("executing %q: %w", s, err)
		}
	}
	return nil
}
