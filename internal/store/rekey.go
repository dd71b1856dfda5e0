package store

import (
	"context"
	"fmt"

	"github.com/ctomkow/gluetube/internal/config"
	"github.com/ctomkow/gluetube/internal/crypto"
	"github.com/ctomkow/gluetube/internal/errs"
)

// tableNames lists every KV table to re-encrypt, read from sqlite_master
// (every table whose name does not start with "sqlite_"). DefaultTable
// appears only once it has been created.
func (s *Store) tableNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, &errs.StoreError{Op: "rekey", Err: err}
	}
	return names, nil
}

// Rekey re-encrypts every value across every table under newSecret, then
// persists newSecret to the config file's SQLITE_TOKEN. It is idempotent:
// since s.secret always reflects the *current* token and every value is
// always decrypted with exactly that token before being re-encrypted, a
// retry with the same newSecret simply decrypts already-migrated rows
// (now under newSecret) and re-encrypts them again with fresh salt/nonce —
// same plaintext, no corruption. See DESIGN.md for the rekey-interrupted
// boundary case.
func (s *Store) Rekey(ctx context.Context, cfg *config.Config, newSecret string) error {
	tables, err := s.tableNames(ctx)
	if err != nil {
		return err
	}

	// Read every row through the pool *before* opening the transaction: the
	// store's connection pool is capped at one (store.go's
	// SetMaxOpenConns(1)), so a read issued after BeginTxx would block
	// forever waiting for the single connection the open *sql.Tx already
	// holds.
	type pending struct {
		table, key, plain string
	}
	var rows []pending
	for _, table := range tables {
		kvs, err := s.AllKeyValues(ctx, table)
		if err != nil {
			return fmt.Errorf("rekey: reading table %s: %w", table, err)
		}
		for key, plain := range kvs {
			rows = append(rows, pending{table: table, key: key, plain: plain})
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &errs.StoreError{Op: "rekey", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		blob, err := crypto.Encrypt(newSecret, row.plain)
		if err != nil {
			return &errs.StoreError{Op: "rekey", Err: err}
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %q SET value = ? WHERE key = ?`, row.table), blob, row.key); err != nil {
			return &errs.StoreError{Op: "rekey", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errs.StoreError{Op: "rekey", Err: err}
	}

	s.secret = newSecret
	if err := cfg.WriteToken(newSecret); err != nil {
		return fmt.Errorf("rekey: persisting new token: %w", err)
	}
	return nil
}
