// Package store implements the encrypted key-value store: a single SQLite
// file holding one table per logical store name, with every value
// encrypted under a key derived from the daemon's master secret.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ctomkow/gluetube/internal/crypto"
	"github.com/ctomkow/gluetube/internal/errs"
)

// DefaultTable is the table pipelines render their templates against and
// the CLI's implicit --table for `gluetube store`.
const DefaultTable = "common"

// Store is the encrypted key-value store, holding its own SQLite handle
// separate from the pipelines database per spec.md §2 component table.
type Store struct {
	db     *sqlx.DB
	secret string
}

// Open opens (creating if absent) the KV store at <dir>/<kvName>.db.
func Open(dir, kvName, masterSecret string) (*Store, error) {
	path := filepath.Join(dir, kvName+".db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, &errs.StoreError{Op: "open", Err: err}
	}
	conn.SetMaxOpenConns(1)
	return &Store{db: conn, secret: masterSecret}, nil
}

func validTableName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// CreateTable creates a new KV table if it does not already exist.
func (s *Store) CreateTable(ctx context.Context, name string) error {
	if !validTableName(name) {
		return &errs.StoreError{Op: "create_table", Err: fmt.Errorf("invalid table name %q", name)}
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (key TEXT NOT NULL UNIQUE CHECK (key != ''), value BLOB NOT NULL CHECK (length(value) > 0))`, name))
	if err != nil {
		return &errs.StoreError{Op: "create_table", Err: err}
	}
	return nil
}

// InsertOrReplace encrypts value and upserts it under key in table.
// Rejects an empty key or empty plaintext value.
func (s *Store) InsertOrReplace(ctx context.Context, table, key, value string) error {
	if key == "" {
		return &errs.StoreError{Op: "insert_or_replace", Err: fmt.Errorf("empty key")}
	}
	if value == "" {
		return &errs.StoreError{Op: "insert_or_replace", Err: fmt.Errorf("empty value")}
	}
	if !validTableName(table) {
		return &errs.StoreError{Op: "insert_or_replace", Err: fmt.Errorf("invalid table name %q", table)}
	}
	if err := s.CreateTable(ctx, table); err != nil {
		return err
	}

	blob, err := crypto.Encrypt(s.secret, value)
	if err != nil {
		return &errs.StoreError{Op: "insert_or_replace", Err: err}
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %q (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, table),
		key, blob)
	if err != nil {
		return &errs.StoreError{Op: "insert_or_replace", Err: err}
	}
	return nil
}

// Value returns the decrypted value for key in table, and ok=false if not
// found (distinct from an empty string, which InsertOrReplace rejects
// anyway).
func (s *Store) Value(ctx context.Context, table, key string) (value string, ok bool, err error) {
	if !validTableName(table) {
		return "", false, &errs.StoreError{Op: "value", Err: fmt.Errorf("invalid table name %q", table)}
	}
	var blob []byte
	qerr := s.db.GetContext(ctx, &blob, fmt.Sprintf(`SELECT value FROM %q WHERE key = ?`, table), key)
	if qerr != nil {
		if qerr == sql.ErrNoRows || strings.Contains(qerr.Error(), "no such table") {
			return "", false, nil
		}
		return "", false, &errs.StoreError{Op: "value", Err: qerr}
	}
	plain, derr := crypto.Decrypt(s.secret, blob)
	if derr != nil {
		return "", false, &errs.StoreError{Op: "value", Err: derr}
	}
	return plain, true, nil
}

// AllKeys returns every key in table.
func (s *Store) AllKeys(ctx context.Context, table string) ([]string, error) {
	if !validTableName(table) {
		return nil, &errs.StoreError{Op: "all_keys", Err: fmt.Errorf("invalid table name %q", table)}
	}
	var keys []string
	err := s.db.SelectContext(ctx, &keys, fmt.Sprintf(`SELECT key FROM %q ORDER BY key`, table))
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, nil
		}
		return nil, &errs.StoreError{Op: "all_keys", Err: err}
	}
	return keys, nil
}

// AllKeyValues returns every (key, decrypted value) pair in table.
func (s *Store) AllKeyValues(ctx context.Context, table string) (map[string]string, error) {
	keys, err := s.AllKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := s.Value(ctx, table, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// Delete removes key from table.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	if !validTableName(table) {
		return &errs.StoreError{Op: "delete", Err: fmt.Errorf("invalid table name %q", table)}
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, table), key)
	if err != nil {
		return &errs.StoreError{Op: "delete", Err: err}
	}
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }
