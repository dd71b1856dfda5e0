package rpc_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctomkow/gluetube/internal/db"
	"github.com/ctomkow/gluetube/internal/rpc"
	"github.com/ctomkow/gluetube/internal/scheduler"
	"github.com/ctomkow/gluetube/internal/store"
)

func newTestDispatcher(t *testing.T) *rpc.Dispatcher {
	t.Helper()
	database, err := db.Open(t.TempDir(), "gluetube")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	kv, err := store.Open(t.TempDir(), "kv", "secret")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	sched := scheduler.New(4)
	sched.Start()
	t.Cleanup(sched.Stop)

	return &rpc.Dispatcher{DB: database, Scheduler: sched, Store: kv}
}

func TestSetPipeline_InstallsParkedSchedulerJob(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	pipelineID, err := d.SetPipeline(ctx, "demo", "demo.py", "demo-dir", 1.0)
	require.NoError(t, err)
	assert.Positive(t, pipelineID)

	rows, err := d.DB.AllPipelinesScheduling(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ScheduleID)

	_, ok := d.Scheduler.Get(scheduleKeyFor(*rows[0].ScheduleID))
	assert.True(t, ok)
}

func TestDeletePipeline_RemovesSchedulerJobsAndRow(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	pipelineID, err := d.SetPipeline(ctx, "demo", "demo.py", "demo-dir", 1.0)
	require.NoError(t, err)

	rows, err := d.DB.AllPipelinesScheduling(ctx)
	require.NoError(t, err)
	scheduleID := *rows[0].ScheduleID

	require.NoError(t, d.DeletePipeline(ctx, pipelineID))

	_, ok := d.Scheduler.Get(scheduleKeyFor(scheduleID))
	assert.False(t, ok)

	rows, err = d.DB.AllPipelinesScheduling(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSetScheduleCron_InvalidExpressionParksSchedule(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.SetPipeline(ctx, "demo", "demo.py", "demo-dir", 1.0)
	require.NoError(t, err)
	rows, err := d.DB.AllPipelinesScheduling(ctx)
	require.NoError(t, err)
	scheduleID := *rows[0].ScheduleID

	err = d.SetScheduleCron(ctx, scheduleID, "not a cron expression")
	assert.Error(t, err)

	schedule, err := d.DB.GetSchedule(ctx, scheduleID)
	require.NoError(t, err)
	assert.Equal(t, "", schedule.Cron)
	assert.Equal(t, "", schedule.At)
}

func TestSetScheduleCron_ValidExpressionReschedules(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.SetPipeline(ctx, "demo", "demo.py", "demo-dir", 1.0)
	require.NoError(t, err)
	rows, err := d.DB.AllPipelinesScheduling(ctx)
	require.NoError(t, err)
	scheduleID := *rows[0].ScheduleID

	require.NoError(t, d.SetScheduleCron(ctx, scheduleID, "*/5 * * * *"))

	schedule, err := d.DB.GetSchedule(ctx, scheduleID)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", schedule.Cron)

	info, ok := d.Scheduler.Get(scheduleKeyFor(scheduleID))
	require.True(t, ok)
	assert.False(t, info.Next.Year() > 9000)
}

func TestSetScheduleNow_ClearsCronAndAt(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.SetPipeline(ctx, "demo", "demo.py", "demo-dir", 1.0)
	require.NoError(t, err)
	rows, err := d.DB.AllPipelinesScheduling(ctx)
	require.NoError(t, err)
	scheduleID := *rows[0].ScheduleID

	require.NoError(t, d.SetScheduleCron(ctx, scheduleID, "*/5 * * * *"))
	require.NoError(t, d.SetScheduleNow(ctx, scheduleID))

	schedule, err := d.DB.GetSchedule(ctx, scheduleID)
	require.NoError(t, err)
	assert.Equal(t, "", schedule.Cron)
	assert.Equal(t, "", schedule.At)
}

func TestDispatch_UnknownMethodErrors(t *testing.T) {
	d := newTestDispatcher(t)
	err := d.Dispatch(context.Background(), rpc.Frame{Func: "no_such_method"})
	assert.Error(t, err)
}

func TestDispatch_SetKeyValueRoundTrips(t *testing.T) {
	d := newTestDispatcher(t)
	frame, err := rpc.Encode(rpc.MethodSetKeyValue, "k", "v", store.DefaultTable)
	require.NoError(t, err)
	decoded, err := rpc.Decode(bytes.NewReader(frame))
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), decoded))

	value, ok, err := d.Store.Value(context.Background(), store.DefaultTable, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestDispatch_SetKeyValueDefaultsTableWhenOmitted(t *testing.T) {
	d := newTestDispatcher(t)
	frame, err := rpc.Encode(rpc.MethodSetKeyValue, "k", "v")
	require.NoError(t, err)
	decoded, err := rpc.Decode(bytes.NewReader(frame))
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), decoded))

	value, ok, err := d.Store.Value(context.Background(), store.DefaultTable, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestDispatch_DeleteKeyDefaultsTableWhenOmitted(t *testing.T) {
	d := newTestDispatcher(t)
	require.NoError(t, d.Store.InsertOrReplace(context.Background(), store.DefaultTable, "k", "v"))

	frame, err := rpc.Encode(rpc.MethodDeleteKey, "k")
	require.NoError(t, err)
	decoded, err := rpc.Decode(bytes.NewReader(frame))
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), decoded))

	_, ok, err := d.Store.Value(context.Background(), store.DefaultTable, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

// scheduleKeyFor mirrors the unexported scheduleKey the dispatcher uses
// internally to address scheduler jobs by schedule id.
func scheduleKeyFor(id int64) string {
	return fmt.Sprintf("%d", id)
}
