package daemon

import (
	"github.com/ctomkow/gluetube/internal/db"
	"github.com/ctomkow/gluetube/internal/scheduler"
)

// triggerFor builds the scheduler.Trigger a boot-time schedule row should
// be installed under: cron if set, one-shot date if set, parked otherwise.
// An invalid persisted cron/at expression (should not happen, since both
// are validated on write, but the database is not the only writer of
// truth during a hand edit) falls back to parking rather than panicking.
func triggerFor(row db.PipelineScheduling) scheduler.Trigger {
	if row.Cron != nil && *row.Cron != "" {
		if t, err := scheduler.NewCronTrigger(*row.Cron); err == nil {
			return t
		}
	}
	if row.At != nil && *row.At != "" {
		if t, err := scheduler.NewDateTrigger(*row.At); err == nil {
			return t
		}
	}
	return scheduler.NewParkedTrigger()
}
