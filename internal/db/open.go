// Package db is the durable relational store for pipelines, schedules and
// runs: the single-writer SQLite handle the daemon owns for its lifetime.
package db

import (
	"fmt"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle opened with foreign keys and WAL journaling
// enabled, per spec section on shared resources.
type DB struct {
	*sqlx.DB
}

// Open opens (creating if absent) the pipelines database at
// <dir>/<appName>.db with foreign keys enabled and WAL journal mode, then
// runs all pending migrations.
func Open(dir, appName string) (*DB, error) {
	path := filepath.Join(dir, appName+".db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening pipelines db: %w", err)
	}
	// Single-writer: SQLite serializes writers anyway, but capping the pool
	// avoids SQLITE_BUSY storms under WAL with multiple connections.
	conn.SetMaxOpenConns(1)

	d := &DB{DB: conn}
	if err := d.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrating pipelines db: %w", err)
	}
	return d, nil
}

// OpenReadOnly opens the same database file for read-only callers (pipeline
// processes reporting status, the CLI), per spec's shared-resource model.
func OpenReadOnly(dir, appName string) (*DB, error) {
	path := filepath.Join(dir, appName+".db")
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=foreign_keys(1)", path)
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening pipelines db read-only: %w", err)
	}
	return &DB{DB: conn}, nil
}
