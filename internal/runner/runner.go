// Package runner supervises exactly one pipeline process per invocation:
// isolated dependency environment, variable templating, spawn, and
// lifecycle reporting back to the daemon. It is itself an ordinary RPC
// client of the daemon — per spec.md §5, worker-pool jobs never write to
// the database or scheduler directly, they report through the same socket
// the CLI and the pipeline process use.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctomkow/gluetube/internal/db"
	"github.com/ctomkow/gluetube/internal/errs"
	"github.com/ctomkow/gluetube/internal/rpc"
	"github.com/ctomkow/gluetube/internal/store"
)

// DefaultInterpreter and DefaultPackageInstaller/DefaultEnvBuilder name the
// binaries expected inside a pipeline's isolated environment.
const (
	DefaultInterpreter      = "python3"
	DefaultPackageInstaller = "pip3"
	DefaultEnvBuilder       = "virtualenv"
)

// Runner runs one pipeline process to completion and reports its lifecycle.
// ReadDB is a read-only handle used solely for the post-insert run id
// lookup below; every write goes out over RPC.
type Runner struct {
	PipelineID      int64
	PipelineName    string
	PyFileName      string
	PipelineDirName string
	ScheduleID      int64

	BaseDir    string // PIPELINE_DIR
	SocketFile string

	HTTPProxy        string
	HTTPSProxy       string
	Interpreter      string
	PackageInstaller string
	EnvBuilder       string

	ReadDB *db.DB
	Store  *store.Store
}

func (r *Runner) interpreter() string {
	if r.Interpreter != "" {
		return r.Interpreter
	}
	return DefaultInterpreter
}

func (r *Runner) installer() string {
	if r.PackageInstaller != "" {
		return r.PackageInstaller
	}
	return DefaultPackageInstaller
}

func (r *Runner) builder() string {
	if r.EnvBuilder != "" {
		return r.EnvBuilder
	}
	return DefaultEnvBuilder
}

// Run executes the steps of spec.md §4.6 in order. The returned error, if
// any, is always an *errs.RunnerError; the captured process output never
// appears in it, only in the already-persisted run row.
func (r *Runner) Run(ctx context.Context) error {
	dirAbsPath, err := filepath.Abs(filepath.Join(r.BaseDir, r.PipelineDirName))
	if err != nil {
		return &errs.RunnerError{Err: fmt.Errorf("resolving pipeline dir: %w", err)}
	}

	if err := r.ensureVenv(ctx, dirAbsPath); err != nil {
		return &errs.RunnerError{Err: fmt.Errorf("creating isolated environment: %w", err)}
	}
	if err := r.installRequirements(ctx, dirAbsPath); err != nil {
		return &errs.RunnerError{Err: fmt.Errorf("installing requirements: %w", err)}
	}

	src, err := os.ReadFile(filepath.Join(dirAbsPath, r.PyFileName))
	if err != nil {
		return &errs.RunnerError{Err: fmt.Errorf("reading pipeline source: %w", err)}
	}
	rendered, err := renderPipeline(ctx, r.Store, string(src))
	if err != nil {
		return &errs.RunnerError{Err: fmt.Errorf("rendering pipeline: %w", err)}
	}

	startTime := time.Now().UTC().Format(time.RFC3339)
	if err := rpc.CallWithRetry(r.SocketFile, rpc.MethodSetPipelineRun,
		r.PipelineID, r.ScheduleID, db.RunStatusRunning, startTime); err != nil {
		return &errs.RunnerError{Err: fmt.Errorf("reporting run start: %w", err)}
	}

	// set_pipeline_run is fire-and-forget and returns no id, so the run
	// row has to be looked back up by its own (pipeline_id, start_time).
	// TODO: carry the id back some other way and drop this lookup+sleep.
	time.Sleep(200 * time.Millisecond)
	runID, err := r.ReadDB.PipelineRunIDByStartTime(ctx, r.PipelineID, startTime)
	if err != nil {
		return &errs.RunnerError{Err: fmt.Errorf("looking up inserted run: %w", err)}
	}

	if err := rpc.CallWithRetry(r.SocketFile, rpc.MethodSetScheduleLatestRun, r.ScheduleID, runID); err != nil {
		return &errs.RunnerError{RunID: runID, Err: fmt.Errorf("reporting latest run: %w", err)}
	}

	env := os.Environ()
	env = append(env, "PIPELINE_RUN_ID="+fmt.Sprint(runID), "SOCKET_FILE="+r.SocketFile)

	cmd := exec.CommandContext(ctx, interpreterPath(dirAbsPath, r.interpreter()), "-")
	cmd.Dir = dirAbsPath
	cmd.Env = env
	cmd.Stdin = strings.NewReader(rendered)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()
	endTime := time.Now().UTC().Format(time.RFC3339)

	if runErr != nil {
		_ = rpc.CallWithRetry(r.SocketFile, rpc.MethodSetPipelineRunFinished,
			runID, db.RunStatusCrashed, combined.String(), endTime)
		return &errs.RunnerError{RunID: runID, Err: fmt.Errorf("pipeline %s crashed", r.PipelineName)}
	}

	if err := rpc.CallWithRetry(r.SocketFile, rpc.MethodSetPipelineRunFinished,
		runID, db.RunStatusFinished, "", endTime); err != nil {
		return &errs.RunnerError{RunID: runID, Err: fmt.Errorf("reporting run finish: %w", err)}
	}
	return nil
}
