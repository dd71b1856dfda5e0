package db

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/ctomkow/gluetube/internal/errs"
)

// ErrNotFound is returned by single-row reads that find nothing, mirroring
// steveyegge-beads' own sql.ErrNoRows-to-sentinel translation.
var ErrNotFound = errors.New("not found")

// wrap translates a raw sqlite error into a typed *errs.DBError, folding
// sql.ErrNoRows into ErrNotFound and recognizing UNIQUE (duplicate
// pipeline name), CHECK (empty required field, cron+at both set) and
// FOREIGN KEY violations from modernc.org/sqlite's error text.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &errs.DBError{Op: op, Err: ErrNotFound}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return &errs.DBError{Op: op, Err: errors.New("duplicate value violates unique constraint: " + msg)}
	case strings.Contains(msg, "CHECK constraint failed"):
		return &errs.DBError{Op: op, Err: errors.New("value violates check constraint: " + msg)}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &errs.DBError{Op: op, Err: errors.New("foreign key constraint failed: " + msg)}
	default:
		return &errs.DBError{Op: op, Err: err}
	}
}
