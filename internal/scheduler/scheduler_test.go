package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctomkow/gluetube/internal/scheduler"
)

func TestAddAndGet_ParkedJobIsAddressable(t *testing.T) {
	s := scheduler.New(4)
	s.Start()
	defer s.Stop()

	err := s.Add("1", scheduler.NewParkedTrigger(), func(ctx context.Context) {})
	require.NoError(t, err)

	info, ok := s.Get("1")
	require.True(t, ok)
	assert.False(t, info.Paused)
	assert.True(t, info.Next.Year() > 9000)
}

func TestReschedule_ReplacesTrigger(t *testing.T) {
	s := scheduler.New(4)
	s.Start()
	defer s.Stop()

	require.NoError(t, s.Add("1", scheduler.NewParkedTrigger(), func(ctx context.Context) {}))

	cron, err := scheduler.NewCronTrigger("*/5 * * * *")
	require.NoError(t, err)
	require.NoError(t, s.Reschedule("1", cron))

	info, ok := s.Get("1")
	require.True(t, ok)
	assert.False(t, info.Next.Year() > 9000)
}

func TestRemove_MakesJobUnaddressable(t *testing.T) {
	s := scheduler.New(4)
	s.Start()
	defer s.Stop()

	require.NoError(t, s.Add("1", scheduler.NewParkedTrigger(), func(ctx context.Context) {}))
	s.Remove("1")

	_, ok := s.Get("1")
	assert.False(t, ok)
}

func TestPause_SuppressesFire(t *testing.T) {
	s := scheduler.New(4)
	s.Start()
	defer s.Stop()

	var fired atomic.Bool
	require.NoError(t, s.Add("1", scheduler.NewParkedTrigger(), func(ctx context.Context) { fired.Store(true) }))
	require.NoError(t, s.Pause("1", true))
	require.NoError(t, s.Reschedule("1", scheduler.NewNowTrigger()))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestConcurrentFires_BoundedByWorkerPool(t *testing.T) {
	s := scheduler.New(2)
	s.Start()
	defer s.Stop()

	var mu sync.Mutex
	var maxConcurrent, current int32

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, s.Add(id, scheduler.NewNowTrigger(), func(ctx context.Context) {
			mu.Lock()
			current++
			if current > maxConcurrent {
				maxConcurrent = current
			}
			mu.Unlock()

			time.Sleep(30 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
		}))
	}

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxConcurrent, int32(2))
}
