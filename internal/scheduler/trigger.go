package scheduler

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// farFuture is the parking sentinel: a one-shot trigger far enough out that
// it never fires in practice, but still gives the schedule an addressable
// scheduler job per spec.md §4.5's park policy.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Trigger is a cron.Schedule plus the bit of extra bookkeeping the
// scheduler needs: whether it's a one-shot (auto-removed after firing) and
// a human-readable description for logs.
type Trigger interface {
	cron.Schedule
	oneShot() bool
	String() string
}

// cronTrigger wraps a parsed five-field crontab expression.
type cronTrigger struct {
	expr     string
	schedule cron.Schedule
}

// standardParser accepts exactly the five-field minute-hour-dom-month-dow
// syntax spec.md §6 specifies, with no optional seconds field.
var standardParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// NewCronTrigger parses expr. Invalid expressions return an error; callers
// must park the schedule instead, per spec.md §4.5.
func NewCronTrigger(expr string) (Trigger, error) {
	sched, err := standardParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &cronTrigger{expr: expr, schedule: sched}, nil
}

func (t *cronTrigger) Next(prev time.Time) time.Time { return t.schedule.Next(prev) }
func (t *cronTrigger) oneShot() bool                 { return false }
func (t *cronTrigger) String() string                { return t.expr }

// dateTrigger fires exactly once at the configured instant, then behaves as
// if it will never fire again (Next always returns farFuture past that
// point); the scheduler removes the job after the single fire.
type dateTrigger struct {
	at time.Time
}

// zonelessLayout matches an ISO-8601 instant with no timezone offset, e.g.
// "2099-01-01T00:00:00" (spec.md §8 scenario 3 uses exactly this form).
const zonelessLayout = "2006-01-02T15:04:05"

// NewDateTrigger parses an ISO-8601 instant, accepting a zoned RFC3339
// instant or a bare zoneless one (treated as UTC).
func NewDateTrigger(iso string) (Trigger, error) {
	at, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		at, err = time.ParseInLocation(zonelessLayout, iso, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid ISO-8601 instant %q: %w", iso, err)
		}
	}
	return &dateTrigger{at: at}, nil
}

func (t *dateTrigger) Next(prev time.Time) time.Time {
	if prev.Before(t.at) {
		return t.at
	}
	return farFuture
}
func (t *dateTrigger) oneShot() bool { return true }
func (t *dateTrigger) String() string {
	return t.at.Format(time.RFC3339)
}

// parkedTrigger never fires; it exists purely so the schedule has an
// addressable job id, per spec.md §4.5's park policy.
type parkedTrigger struct{}

// NewParkedTrigger returns the parking trigger.
func NewParkedTrigger() Trigger { return &parkedTrigger{} }

func (t *parkedTrigger) Next(prev time.Time) time.Time { return farFuture }
func (t *parkedTrigger) oneShot() bool                 { return false }
func (t *parkedTrigger) String() string                { return "parked" }

// nowTrigger reports its creation instant on the first Next call, which the
// cron clock makes when the job is installed, so the job is due at once;
// every later call returns farFuture.
type nowTrigger struct {
	at     time.Time
	issued atomic.Bool
}

func (t *nowTrigger) Next(prev time.Time) time.Time {
	if t.issued.CompareAndSwap(false, true) {
		return t.at
	}
	return farFuture
}
func (t *nowTrigger) oneShot() bool  { return true }
func (t *nowTrigger) String() string { return "now" }

// NewNowTrigger fires once, immediately.
func NewNowTrigger() Trigger {
	return &nowTrigger{at: time.Now().UTC()}
}
