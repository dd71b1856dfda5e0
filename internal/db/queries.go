package db

import "context"

// InsertPipeline creates a pipeline row. Fails with a wrapped *errs.DBError
// on duplicate name or duplicate (py_name, dir_name) pair.
func (d *DB) InsertPipeline(ctx context.Context, name, pyName, dirName string, pyTimestamp float64) (int64, error) {
	res, err := d.ExecContext(ctx,
		`INSERT INTO pipeline (name, py_name, dir_name, py_timestamp) VALUES (?, ?, ?, ?)`,
		name, pyName, dirName, pyTimestamp)
	if err != nil {
		return 0, wrap("insert_pipeline", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("insert_pipeline", err)
	}
	return id, nil
}

// DeletePipeline removes a pipeline row; cascades to schedules and runs.
func (d *DB) DeletePipeline(ctx context.Context, pipelineID int64) error {
	_, err := d.ExecContext(ctx, `DELETE FROM pipeline WHERE id = ?`, pipelineID)
	return wrap("delete_pipeline", err)
}

// InsertSchedule creates a new schedule under an existing pipeline, parked
// (empty cron and at) by default.
func (d *DB) InsertSchedule(ctx context.Context, pipelineID int64) (int64, error) {
	res, err := d.ExecContext(ctx,
		`INSERT INTO pipeline_schedule (pipeline_id, cron, at) VALUES (?, '', '')`, pipelineID)
	if err != nil {
		return 0, wrap("insert_schedule", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("insert_schedule", err)
	}
	return id, nil
}

// SetScheduleCron clears at and sets cron on a schedule.
func (d *DB) SetScheduleCron(ctx context.Context, scheduleID int64, cron string) error {
	_, err := d.ExecContext(ctx,
		`UPDATE pipeline_schedule SET cron = ?, at = '' WHERE id = ?`, cron, scheduleID)
	return wrap("set_schedule_cron", err)
}

// SetScheduleAt clears cron and sets at on a schedule.
func (d *DB) SetScheduleAt(ctx context.Context, scheduleID int64, at string) error {
	_, err := d.ExecContext(ctx,
		`UPDATE pipeline_schedule SET at = ?, cron = '' WHERE id = ?`, at, scheduleID)
	return wrap("set_schedule_at", err)
}

// ParkSchedule clears both cron and at, returning the schedule to parked.
func (d *DB) ParkSchedule(ctx context.Context, scheduleID int64) error {
	_, err := d.ExecContext(ctx,
		`UPDATE pipeline_schedule SET at = '', cron = '' WHERE id = ?`, scheduleID)
	return wrap("park_schedule", err)
}

// SetSchedulePaused sets the paused flag on a schedule.
func (d *DB) SetSchedulePaused(ctx context.Context, scheduleID int64, paused bool) error {
	_, err := d.ExecContext(ctx, `UPDATE pipeline_schedule SET paused = ? WHERE id = ?`, paused, scheduleID)
	return wrap("set_schedule_paused", err)
}

// DeleteSchedule removes a schedule row.
func (d *DB) DeleteSchedule(ctx context.Context, scheduleID int64) error {
	_, err := d.ExecContext(ctx, `DELETE FROM pipeline_schedule WHERE id = ?`, scheduleID)
	return wrap("delete_schedule", err)
}

// SetScheduleLatestRun points a schedule's latest_run at a run id.
func (d *DB) SetScheduleLatestRun(ctx context.Context, scheduleID, runID int64) error {
	_, err := d.ExecContext(ctx,
		`UPDATE pipeline_schedule SET latest_run = ? WHERE id = ?`, runID, scheduleID)
	return wrap("set_schedule_latest_run", err)
}

// InsertRun creates a run row with the given status and start time (the
// runner passes RunStatusRunning).
func (d *DB) InsertRun(ctx context.Context, pipelineID, scheduleID int64, status, startTime string) (int64, error) {
	res, err := d.ExecContext(ctx,
		`INSERT INTO pipeline_run (pipeline_id, schedule_id, status, start_time) VALUES (?, ?, ?, ?)`,
		pipelineID, scheduleID, status, startTime)
	if err != nil {
		return 0, wrap("insert_run", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("insert_run", err)
	}
	return id, nil
}

// SetRunStatus updates only a run's status, called by the pipeline process
// itself over RPC mid-flight.
func (d *DB) SetRunStatus(ctx context.Context, runID int64, status string) error {
	_, err := d.ExecContext(ctx, `UPDATE pipeline_run SET status = ? WHERE id = ?`, status, runID)
	return wrap("set_run_status", err)
}

// SetRunStageAndStageMsg updates a run's opaque progress fields.
func (d *DB) SetRunStageAndStageMsg(ctx context.Context, runID int64, stage int, msg string) error {
	_, err := d.ExecContext(ctx,
		`UPDATE pipeline_run SET stage = ?, stage_msg = ? WHERE id = ?`, stage, msg, runID)
	return wrap("set_run_stage_and_stage_msg", err)
}

// FinalizeRun sets a run's terminal status, exit message and end time.
func (d *DB) FinalizeRun(ctx context.Context, runID int64, status, exitMsg, endTime string) error {
	_, err := d.ExecContext(ctx,
		`UPDATE pipeline_run SET status = ?, exit_msg = ?, end_time = ? WHERE id = ?`,
		status, exitMsg, endTime, runID)
	return wrap("finalize_run", err)
}

// AllPipelinesScheduling returns the left join of pipeline to schedule, one
// row per (pipeline, schedule) pair; a pipeline with no schedule gets one
// row with NULL schedule fields.
func (d *DB) AllPipelinesScheduling(ctx context.Context) ([]PipelineScheduling, error) {
	var rows []PipelineScheduling
	err := d.SelectContext(ctx, &rows, `
		SELECT p.id AS pipeline_id, p.name, p.py_name, p.dir_name,
		       s.id AS schedule_id, s.cron, s.at, s.paused
		FROM pipeline p
		LEFT JOIN pipeline_schedule s ON s.pipeline_id = p.id
		ORDER BY p.id`)
	if err != nil {
		return nil, wrap("all_pipelines_scheduling", err)
	}
	return rows, nil
}

// PipelineFromScheduleID returns the pipeline owning a schedule.
func (d *DB) PipelineFromScheduleID(ctx context.Context, scheduleID int64) (*Pipeline, error) {
	var p Pipeline
	err := d.GetContext(ctx, &p, `
		SELECT p.* FROM pipeline p
		JOIN pipeline_schedule s ON s.pipeline_id = p.id
		WHERE s.id = ?`, scheduleID)
	if err != nil {
		return nil, wrap("pipeline_from_schedule_id", err)
	}
	return &p, nil
}

// PipelineSchedule returns the schedule joined to its owning pipeline,
// validating that scheduleID actually belongs to pipelineID.
func (d *DB) PipelineSchedule(ctx context.Context, pipelineID, scheduleID int64) (*Schedule, error) {
	var s Schedule
	err := d.GetContext(ctx, &s, `
		SELECT * FROM pipeline_schedule WHERE id = ? AND pipeline_id = ?`, scheduleID, pipelineID)
	if err != nil {
		return nil, wrap("pipeline_schedule", err)
	}
	return &s, nil
}

// PipelineSchedulesID returns all schedule ids under a pipeline.
func (d *DB) PipelineSchedulesID(ctx context.Context, pipelineID int64) ([]int64, error) {
	var ids []int64
	err := d.SelectContext(ctx, &ids,
		`SELECT id FROM pipeline_schedule WHERE pipeline_id = ?`, pipelineID)
	if err != nil {
		return nil, wrap("pipeline_schedules_id", err)
	}
	return ids, nil
}

// SummaryPipelines is the CLI's tabular read across pipeline, schedule and
// latest run.
func (d *DB) SummaryPipelines(ctx context.Context) ([]SummaryRow, error) {
	var rows []SummaryRow
	err := d.SelectContext(ctx, &rows, `
		SELECT p.id AS pipeline_id, p.name,
		       s.id AS schedule_id, s.cron, s.at, s.paused,
		       r.status AS run_status, r.start_time AS run_start_time
		FROM pipeline p
		LEFT JOIN pipeline_schedule s ON s.pipeline_id = p.id
		LEFT JOIN pipeline_run r ON r.id = s.latest_run
		ORDER BY p.id`)
	if err != nil {
		return nil, wrap("summary_pipelines", err)
	}
	return rows, nil
}

// GetSchedule fetches a schedule by id alone, used by reschedule handlers
// that only receive a schedule id.
func (d *DB) GetSchedule(ctx context.Context, scheduleID int64) (*Schedule, error) {
	var s Schedule
	err := d.GetContext(ctx, &s, `SELECT * FROM pipeline_schedule WHERE id = ?`, scheduleID)
	if err != nil {
		return nil, wrap("get_schedule", err)
	}
	return &s, nil
}

// PipelineRunIDByStartTime finds the run id inserted for pipelineID at
// exactly startTime. Used by the runner immediately after reporting
// set_pipeline_run over RPC, since that call is fire-and-forget and
// returns no id directly.
func (d *DB) PipelineRunIDByStartTime(ctx context.Context, pipelineID int64, startTime string) (int64, error) {
	var id int64
	err := d.GetContext(ctx, &id,
		`SELECT id FROM pipeline_run WHERE pipeline_id = ? AND start_time = ? ORDER BY id DESC LIMIT 1`,
		pipelineID, startTime)
	if err != nil {
		return 0, wrap("pipeline_run_id_by_start_time", err)
	}
	return id, nil
}

// GetRun fetches a run by id.
func (d *DB) GetRun(ctx context.Context, runID int64) (*Run, error) {
	var r Run
	err := d.GetContext(ctx, &r, `SELECT * FROM pipeline_run WHERE id = ?`, runID)
	if err != nil {
		return nil, wrap("get_run", err)
	}
	return &r, nil
}
