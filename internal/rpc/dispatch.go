package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ctomkow/gluetube/internal/config"
	"github.com/ctomkow/gluetube/internal/db"
	"github.com/ctomkow/gluetube/internal/errs"
	"github.com/ctomkow/gluetube/internal/scheduler"
	"github.com/ctomkow/gluetube/internal/store"
)

// RunFunc spawns one execution of a pipeline under a schedule. Defined here
// rather than imported from package runner so runner can depend on rpc
// (for its own status callbacks) without rpc depending back on runner.
type RunFunc func(ctx context.Context, pipelineID, scheduleID int64)

// Dispatcher is the daemon's sole writer: every mutation to the pipelines
// database, the encrypted store, or the in-memory scheduler registry flows
// through one of its methods. Every caller, the runner and autodiscovery
// included, reaches it over the accept loop's socket. That single funnel is what makes the daemon loop single-writer
// per spec.md §4.8, without needing its own extra mutex: sqlite's one-conn
// handle and the scheduler's own internal lock already serialize access.
type Dispatcher struct {
	DB        *db.DB
	Scheduler *scheduler.Scheduler
	Store     *store.Store
	Config    *config.Config
	Run       RunFunc
	Logger    *slog.Logger
}

func scheduleKey(scheduleID int64) string { return fmt.Sprintf("%d", scheduleID) }

// Dispatch resolves frame.Func against the method whitelist and invokes
// the matching handler. A malformed frame or unknown method never panics
// or crashes the daemon; it is logged and dropped, per spec.md §6.
func (d *Dispatcher) Dispatch(ctx context.Context, f Frame) error {
	switch f.Func {
	case MethodSetPipeline:
		var name, pyName, dirName string
		var pyTimestamp float64
		if err := args(f.Params, &name, &pyName, &dirName, &pyTimestamp); err != nil {
			return err
		}
		_, err := d.SetPipeline(ctx, name, pyName, dirName, pyTimestamp)
		return err

	case MethodDeletePipeline:
		var pipelineID int64
		if err := args(f.Params, &pipelineID); err != nil {
			return err
		}
		return d.DeletePipeline(ctx, pipelineID)

	case MethodSetSchedule:
		var pipelineID int64
		if err := args(f.Params, &pipelineID); err != nil {
			return err
		}
		_, err := d.SetSchedule(ctx, pipelineID)
		return err

	case MethodSetScheduleCron:
		var scheduleID int64
		var expr string
		if err := args(f.Params, &scheduleID, &expr); err != nil {
			return err
		}
		return d.SetScheduleCron(ctx, scheduleID, expr)

	case MethodSetScheduleAt:
		var scheduleID int64
		var at string
		if err := args(f.Params, &scheduleID, &at); err != nil {
			return err
		}
		return d.SetScheduleAt(ctx, scheduleID, at)

	case MethodSetScheduleNow:
		var scheduleID int64
		if err := args(f.Params, &scheduleID); err != nil {
			return err
		}
		return d.SetScheduleNow(ctx, scheduleID)

	case MethodDeleteSchedule:
		var scheduleID int64
		if err := args(f.Params, &scheduleID); err != nil {
			return err
		}
		return d.DeleteSchedule(ctx, scheduleID)

	case MethodSetScheduleLatestRun:
		var scheduleID, runID int64
		if err := args(f.Params, &scheduleID, &runID); err != nil {
			return err
		}
		return d.SetScheduleLatestRun(ctx, scheduleID, runID)

	case MethodSetPipelineRun:
		var pipelineID, scheduleID int64
		var status, startTime string
		if err := args(f.Params, &pipelineID, &scheduleID, &status, &startTime); err != nil {
			return err
		}
		_, err := d.SetPipelineRun(ctx, pipelineID, scheduleID, status, startTime)
		return err

	case MethodSetPipelineRunStatus:
		var runID int64
		var status string
		if err := args(f.Params, &runID, &status); err != nil {
			return err
		}
		return d.SetPipelineRunStatus(ctx, runID, status)

	case MethodSetPipelineRunStageAndMsg:
		var runID int64
		var stage int
		var msg string
		if err := args(f.Params, &runID, &stage, &msg); err != nil {
			return err
		}
		return d.SetPipelineRunStageAndStageMsg(ctx, runID, stage, msg)

	case MethodSetPipelineRunFinished:
		var runID int64
		var status, exitMsg, endTime string
		if err := args(f.Params, &runID, &status, &exitMsg, &endTime); err != nil {
			return err
		}
		return d.SetPipelineRunFinished(ctx, runID, status, exitMsg, endTime)

	case MethodSetKeyValue:
		// Wire order is key, value, [table], table defaulting to the common store.
		if len(f.Params) < 2 {
			return &errs.RPCError{Op: "dispatch", Err: fmt.Errorf("expected at least 2 params, got %d", len(f.Params))}
		}
		var key, value string
		if err := args(f.Params[:2], &key, &value); err != nil {
			return err
		}
		table := store.DefaultTable
		if len(f.Params) > 2 {
			if err := args(f.Params[2:3], &table); err != nil {
				return err
			}
		}
		return d.SetKeyValue(ctx, key, value, table)

	case MethodDeleteKey:
		// Wire order is key, [table], table defaulting to the common store.
		if len(f.Params) < 1 {
			return &errs.RPCError{Op: "dispatch", Err: fmt.Errorf("expected at least 1 param, got %d", len(f.Params))}
		}
		var key string
		if err := args(f.Params[:1], &key); err != nil {
			return err
		}
		table := store.DefaultTable
		if len(f.Params) > 1 {
			if err := args(f.Params[1:2], &table); err != nil {
				return err
			}
		}
		return d.DeleteKey(ctx, key, table)

	case MethodRekeyDB:
		var newSecret string
		if err := args(f.Params, &newSecret); err != nil {
			return err
		}
		return d.RekeyDB(ctx, newSecret)

	default:
		return &errs.RPCError{Op: "dispatch", Err: fmt.Errorf("unknown method %q", f.Func)}
	}
}

// args unmarshals params positionally into dst, in order. A short params
// slice or a type mismatch is an *errs.RPCError, never a panic.
func args(params []json.RawMessage, dst ...any) error {
	if len(params) < len(dst) {
		return &errs.RPCError{Op: "dispatch", Err: fmt.Errorf("expected %d params, got %d", len(dst), len(params))}
	}
	for i, d := range dst {
		if err := json.Unmarshal(params[i], d); err != nil {
			return &errs.RPCError{Op: "dispatch", Err: fmt.Errorf("param %d: %w", i, err)}
		}
	}
	return nil
}

// SetPipeline registers a newly discovered (or re-synced) pipeline: a
// pipeline row plus a parked schedule and its parked scheduler job. If
// installing the scheduler job fails, the pipeline and schedule rows are
// rolled back so the daemon never holds a pipeline with no addressable job.
func (d *Dispatcher) SetPipeline(ctx context.Context, name, pyName, dirName string, pyTimestamp float64) (int64, error) {
	pipelineID, err := d.DB.InsertPipeline(ctx, name, pyName, dirName, pyTimestamp)
	if err != nil {
		return 0, err
	}
	scheduleID, err := d.DB.InsertSchedule(ctx, pipelineID)
	if err != nil {
		_ = d.DB.DeletePipeline(ctx, pipelineID)
		return 0, err
	}
	if err := d.Scheduler.Add(scheduleKey(scheduleID), scheduler.NewParkedTrigger(), d.runFn(pipelineID, scheduleID)); err != nil {
		_ = d.DB.DeletePipeline(ctx, pipelineID)
		return 0, &errs.DaemonError{Op: "set_pipeline", Err: err}
	}
	return pipelineID, nil
}

// DeletePipeline removes every schedule job for pipelineID from the
// scheduler before deleting the row, whose FK cascade takes the schedule
// and run rows with it.
func (d *Dispatcher) DeletePipeline(ctx context.Context, pipelineID int64) error {
	ids, err := d.DB.PipelineSchedulesID(ctx, pipelineID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		d.Scheduler.Remove(scheduleKey(id))
	}
	return d.DB.DeletePipeline(ctx, pipelineID)
}

// SetSchedule adds an additional parked schedule to an existing pipeline.
func (d *Dispatcher) SetSchedule(ctx context.Context, pipelineID int64) (int64, error) {
	scheduleID, err := d.DB.InsertSchedule(ctx, pipelineID)
	if err != nil {
		return 0, err
	}
	if err := d.Scheduler.Add(scheduleKey(scheduleID), scheduler.NewParkedTrigger(), d.runFn(pipelineID, scheduleID)); err != nil {
		_ = d.DB.DeleteSchedule(ctx, scheduleID)
		return 0, &errs.DaemonError{Op: "set_schedule", Err: err}
	}
	return scheduleID, nil
}

// SetScheduleCron points a schedule at a cron expression. An invalid
// expression parks the schedule instead of erroring the caller out of a
// consistent state, per spec.md §4.5.
func (d *Dispatcher) SetScheduleCron(ctx context.Context, scheduleID int64, expr string) error {
	trigger, perr := scheduler.NewCronTrigger(expr)
	if perr != nil {
		if logErr := d.DB.ParkSchedule(ctx, scheduleID); logErr != nil {
			return logErr
		}
		_ = d.Scheduler.Reschedule(scheduleKey(scheduleID), scheduler.NewParkedTrigger())
		return &errs.DaemonError{Op: "set_schedule_cron", Err: perr}
	}
	if err := d.DB.SetScheduleCron(ctx, scheduleID, expr); err != nil {
		return err
	}
	return d.Scheduler.Reschedule(scheduleKey(scheduleID), trigger)
}

// SetScheduleAt points a schedule at a one-shot ISO-8601 instant. An
// invalid instant parks the schedule, mirroring SetScheduleCron.
func (d *Dispatcher) SetScheduleAt(ctx context.Context, scheduleID int64, at string) error {
	trigger, perr := scheduler.NewDateTrigger(at)
	if perr != nil {
		if logErr := d.DB.ParkSchedule(ctx, scheduleID); logErr != nil {
			return logErr
		}
		_ = d.Scheduler.Reschedule(scheduleKey(scheduleID), scheduler.NewParkedTrigger())
		return &errs.DaemonError{Op: "set_schedule_at", Err: perr}
	}
	if err := d.DB.SetScheduleAt(ctx, scheduleID, at); err != nil {
		return err
	}
	return d.Scheduler.Reschedule(scheduleKey(scheduleID), trigger)
}

// SetScheduleNow clears a schedule's cron and at, then reschedules its job
// to fire immediately, per spec.md §6. Whether this should implicitly
// unpause a paused schedule is an open question (see DESIGN.md); this
// implementation leaves the pause flag untouched, so a paused schedule's
// immediate fire is suppressed like any other fire would be.
func (d *Dispatcher) SetScheduleNow(ctx context.Context, scheduleID int64) error {
	if err := d.DB.ParkSchedule(ctx, scheduleID); err != nil {
		return err
	}
	return d.Scheduler.Reschedule(scheduleKey(scheduleID), scheduler.NewNowTrigger())
}

// DeleteSchedule removes a schedule's scheduler job and its row.
func (d *Dispatcher) DeleteSchedule(ctx context.Context, scheduleID int64) error {
	d.Scheduler.Remove(scheduleKey(scheduleID))
	return d.DB.DeleteSchedule(ctx, scheduleID)
}

// SetScheduleLatestRun is a DB-only write: it does not touch the scheduler.
func (d *Dispatcher) SetScheduleLatestRun(ctx context.Context, scheduleID, runID int64) error {
	return d.DB.SetScheduleLatestRun(ctx, scheduleID, runID)
}

// SetPipelineRun inserts the running-state run row. Called by the runner
// coordinator before it spawns the pipeline process, per spec.md §4.6.
func (d *Dispatcher) SetPipelineRun(ctx context.Context, pipelineID, scheduleID int64, status, startTime string) (int64, error) {
	return d.DB.InsertRun(ctx, pipelineID, scheduleID, status, startTime)
}

// SetPipelineRunStatus is a DB-only write, called by the pipeline process
// itself over RPC mid-flight.
func (d *Dispatcher) SetPipelineRunStatus(ctx context.Context, runID int64, status string) error {
	return d.DB.SetRunStatus(ctx, runID, status)
}

// SetPipelineRunStageAndStageMsg is a DB-only write of a run's opaque
// progress fields.
func (d *Dispatcher) SetPipelineRunStageAndStageMsg(ctx context.Context, runID int64, stage int, msg string) error {
	return d.DB.SetRunStageAndStageMsg(ctx, runID, stage, msg)
}

// SetPipelineRunFinished finalizes a run's terminal status, exit message
// and end time.
func (d *Dispatcher) SetPipelineRunFinished(ctx context.Context, runID int64, status, exitMsg, endTime string) error {
	return d.DB.FinalizeRun(ctx, runID, status, exitMsg, endTime)
}

// SetKeyValue writes an encrypted key-value pair into the named store table.
func (d *Dispatcher) SetKeyValue(ctx context.Context, key, value, table string) error {
	return d.Store.InsertOrReplace(ctx, table, key, value)
}

// DeleteKey removes a key from the named store table.
func (d *Dispatcher) DeleteKey(ctx context.Context, key, table string) error {
	return d.Store.Delete(ctx, table, key)
}

// RekeyDB re-encrypts every stored value under a new master secret and
// persists the new token to the config file.
func (d *Dispatcher) RekeyDB(ctx context.Context, newSecret string) error {
	return d.Store.Rekey(ctx, d.Config, newSecret)
}

// runFn closes over pipelineID/scheduleID so the scheduler's Callable
// signature doesn't need to carry them.
func (d *Dispatcher) runFn(pipelineID, scheduleID int64) scheduler.Callable {
	return func(ctx context.Context) {
		if d.Run == nil {
			return
		}
		d.Run(ctx, pipelineID, scheduleID)
	}
}
