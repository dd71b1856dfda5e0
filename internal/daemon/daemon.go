package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/ctomkow/gluetube/internal/autodiscovery"
	"github.com/ctomkow/gluetube/internal/config"
	"github.com/ctomkow/gluetube/internal/db"
	"github.com/ctomkow/gluetube/internal/metrics"
	"github.com/ctomkow/gluetube/internal/rpc"
	"github.com/ctomkow/gluetube/internal/runner"
	"github.com/ctomkow/gluetube/internal/scheduler"
	"github.com/ctomkow/gluetube/internal/store"
)

// Daemon owns the socket, the scheduler, the database handle, the store,
// and the dispatcher that funnels every mutation through them. It is the
// "domain (a)" single cooperative accept/dispatch thread of spec.md §5.
type Daemon struct {
	Config     *config.Config
	DB         *db.DB
	ReadDB     *db.DB
	Store      *store.Store
	Scheduler  *scheduler.Scheduler
	Dispatcher *rpc.Dispatcher
	Metrics    *metrics.Recorder
	Logger     *slog.Logger

	listener net.Listener
}

// New wires a Daemon's components together. cfg, database handles and
// store must already be open; New installs the Dispatcher and the
// scheduler's Run callback.
func New(cfg *config.Config, database, readDB *db.DB, st *store.Store, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	sched := scheduler.New(scheduler.DefaultWorkers)
	rec := metrics.NewRecorder()

	d := &Daemon{
		Config:    cfg,
		DB:        database,
		ReadDB:    readDB,
		Store:     st,
		Scheduler: sched,
		Metrics:   rec,
		Logger:    logger,
	}

	d.Dispatcher = &rpc.Dispatcher{
		DB:        database,
		Scheduler: sched,
		Store:     st,
		Config:    cfg,
		Logger:    logger,
		Run:       d.runPipeline,
	}
	return d
}

// runPipeline is the scheduler.Callable wired into the Dispatcher: it
// builds a Runner for one fire of (pipelineID, scheduleID) and reports the
// outcome to the metrics recorder. Per spec.md §5, this runs in the
// worker pool: it reads the owning pipeline row, but never writes to the
// database or scheduler directly itself.
func (d *Daemon) runPipeline(ctx context.Context, pipelineID, scheduleID int64) {
	pipeline, err := d.DB.PipelineFromScheduleID(ctx, scheduleID)
	if err != nil {
		d.Logger.Error("run: loading pipeline", "schedule_id", scheduleID, "error", err)
		return
	}

	r := &runner.Runner{
		PipelineID:      pipelineID,
		PipelineName:    pipeline.Name,
		PyFileName:      pipeline.PyName,
		PipelineDirName: pipeline.DirName,
		ScheduleID:      scheduleID,
		BaseDir:         d.Config.PipelineDir,
		SocketFile:      d.Config.SocketFile,
		HTTPProxy:       d.Config.HTTPProxy,
		HTTPSProxy:      d.Config.HTTPSProxy,
		ReadDB:          d.ReadDB,
		Store:           d.Store,
	}

	start := time.Now()
	runErr := r.Run(ctx)
	d.Metrics.RecordRun(ctx, runErr == nil, time.Since(start))
	if runErr != nil {
		d.Logger.Error("pipeline run failed", "pipeline", pipeline.Name, "error", runErr)
	}
}

// Bind removes any file already at the socket path and starts listening.
// It does not check whether a daemon is still accepting on that path: the
// file is removed unconditionally before net.Listen is called.
func (d *Daemon) Bind() error {
	if rpc.EndpointExists(d.Config.SocketFile) {
		_ = os.Remove(d.Config.SocketFile)
	}
	l, err := rpc.ListenRPC(d.Config.SocketFile)
	if err != nil {
		return fmt.Errorf("binding socket %s: %w", d.Config.SocketFile, err)
	}
	d.listener = l
	return nil
}

// Boot starts the scheduler, registers every schedule already in the
// database under its persisted (or parked) trigger, and starts
// autodiscovery. Call after Bind, before Serve.
func (d *Daemon) Boot(ctx context.Context) error {
	d.Scheduler.Start()

	rows, err := d.DB.AllPipelinesScheduling(ctx)
	if err != nil {
		return fmt.Errorf("loading boot-time schedules: %w", err)
	}
	for _, row := range rows {
		if row.ScheduleID == nil {
			continue
		}
		trigger := triggerFor(row)
		key := fmt.Sprintf("%d", *row.ScheduleID)
		pipelineID := row.PipelineID
		scheduleID := *row.ScheduleID
		if err := d.Scheduler.Add(key, trigger, func(ctx context.Context) {
			d.runPipeline(ctx, pipelineID, scheduleID)
		}); err != nil {
			d.Logger.Error("boot: installing job", "schedule_id", scheduleID, "error", err)
		}
		if row.Paused != nil {
			_ = d.Scheduler.Pause(key, *row.Paused)
		}
	}

	scanner := &autodiscovery.Scanner{
		PipelineDir: d.Config.PipelineDir,
		SocketFile:  d.Config.SocketFile,
		DB:          d.DB,
		Logger:      d.Logger,
	}
	go scanner.Run(ctx, time.Duration(d.Config.PipelineScanInterval)*time.Second)

	return nil
}

// Serve runs the accept/dispatch loop until ctx is canceled. Every error
// path is logged and the loop continues, per spec.md §4.8.
func (d *Daemon) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = d.listener.Close()
	}()

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				d.Scheduler.Stop()
				return nil
			default:
				d.Logger.Error("accept failed", "error", err)
				continue
			}
		}
		d.handleConn(ctx, conn)
	}
}

func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Error("rpc: handler panicked", "panic", r)
		}
	}()
	frame, err := rpc.Decode(conn)
	if err != nil {
		d.Logger.Error("rpc: decoding frame", "error", err)
		return
	}
	d.Metrics.RecordRPC(ctx, frame.Func)
	if err := d.Dispatcher.Dispatch(ctx, frame); err != nil {
		d.Logger.Error("rpc: handler failed", "func", frame.Func, "error", err)
	}
}
