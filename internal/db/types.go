package db

// Pipeline is a script file discovered inside the pipeline directory tree,
// identified secondarily by (PyName, DirName). See spec.md §3.
type Pipeline struct {
	ID          int64   `db:"id"`
	Name        string  `db:"name"`
	PyName      string  `db:"py_name"`
	DirName     string  `db:"dir_name"`
	PyTimestamp float64 `db:"py_timestamp"`
}

// Schedule is a trigger specification attached to a pipeline. At most one
// of Cron/At is non-empty; both empty means "parked".
type Schedule struct {
	ID           int64  `db:"id"`
	PipelineID   int64  `db:"pipeline_id"`
	Cron         string `db:"cron"`
	At           string `db:"at"`
	Paused       bool   `db:"paused"`
	RetryOnCrash bool   `db:"retry_on_crash"`
	RetryNum     int    `db:"retry_num"`
	MaxRetries   int    `db:"max_retries"`
	LatestRun    *int64 `db:"latest_run"`
}

// Run statuses, per spec.md §4.6 state machine.
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusCrashed  = "crashed"
)

// Run is one execution attempt of a pipeline under a schedule.
type Run struct {
	ID         int64  `db:"id"`
	PipelineID int64  `db:"pipeline_id"`
	ScheduleID int64  `db:"schedule_id"`
	Status     string `db:"status"`
	Stage      int    `db:"stage"`
	StageMsg   string `db:"stage_msg"`
	ExitMsg    string `db:"exit_msg"`
	StartTime  string `db:"start_time"`
	EndTime    string `db:"end_time"`
}

// PipelineScheduling is the left-join projection AllPipelinesScheduling
// returns: a pipeline row alongside whatever schedule (if any) it owns.
type PipelineScheduling struct {
	PipelineID int64   `db:"pipeline_id"`
	Name       string  `db:"name"`
	PyName     string  `db:"py_name"`
	DirName    string  `db:"dir_name"`
	ScheduleID *int64  `db:"schedule_id"`
	Cron       *string `db:"cron"`
	At         *string `db:"at"`
	Paused     *bool   `db:"paused"`
}

// SummaryRow is the CLI's tabular read across pipeline, schedule and
// latest_run.
type SummaryRow struct {
	PipelineID   int64   `db:"pipeline_id"`
	Name         string  `db:"name"`
	ScheduleID   *int64  `db:"schedule_id"`
	Cron         *string `db:"cron"`
	At           *string `db:"at"`
	Paused       *bool   `db:"paused"`
	RunStatus    *string `db:"run_status"`
	RunStartTime *string `db:"run_start_time"`
}
