package db

import (
	"database/sql"
	"fmt"

	"github.com/ctomkow/gluetube/internal/db/migrations"
)

// migration is one idempotent schema step, numbered for readability in
// logs; idempotency (not a migrations-applied table) is what lets every
// boot re-run the full list cheaply, the same shape steveyegge-beads uses
// for its own sqlite migrations package.
type migration struct {
	name string
	fn   func(*sql.DB) error
}

var allMigrations = []migration{
	{"001_init_schema", migrations.InitSchema},
}

func (d *DB) migrate() error {
	for _, m := range allMigrations {
		if err := m.fn(d.DB.DB); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}
