// Package scheduler is the in-memory job registry keyed by schedule-id,
// built on github.com/robfig/cron/v3 (the one reference repository that
// actually schedules periodic work with a cron library,
// qjoly-datamover-operator). cron.Cron already gives per-entry pause-free
// add/remove and next-fire introspection; this package wraps it so entries
// are addressable by the schedule's id-as-string instead of cron's own
// opaque EntryID, and adds the pause flag and bounded worker pool spec.md
// §4.5 requires.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the default worker-pool bound, per spec.md §4.5.
const DefaultWorkers = 101

// Callable is the work a fired job performs. Errors are the callable's own
// business; the scheduler never inspects them.
type Callable func(ctx context.Context)

type job struct {
	entryID cron.EntryID
	trigger Trigger
	paused  bool
	fn      Callable
}

// Scheduler is the daemon's single in-memory job registry.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]*job
	sem     *semaphore.Weighted
	workers int64
}

// New creates a Scheduler with the given worker-pool bound (0 means
// DefaultWorkers). Its internal cron clock does not run until Start.
func New(workers int64) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	s := &Scheduler{
		cron:    cron.New(),
		jobs:    make(map[string]*job),
		sem:     semaphore.NewWeighted(workers),
		workers: workers,
	}
	return s
}

// Start starts the underlying cron clock. Safe to call once at daemon boot.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the underlying cron clock without waiting for in-flight runs;
// per spec.md §4.5, shutdown is fire-and-forget for running callables.
func (s *Scheduler) Stop() { s.cron.Stop() }

// Add installs id under trigger, firing fn on each occurrence (subject to
// the worker-pool bound and the pause flag). If id already has a job, it is
// replaced.
func (s *Scheduler) Add(id string, trigger Trigger, fn Callable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installLocked(id, trigger, fn, false)
	return nil
}

// installLocked replaces id's job, preserving the given paused flag. Must
// be called with s.mu held.
func (s *Scheduler) installLocked(id string, trigger Trigger, fn Callable, paused bool) {
	if existing, ok := s.jobs[id]; ok {
		s.cron.Remove(existing.entryID)
		delete(s.jobs, id)
	}

	j := &job{trigger: trigger, fn: fn, paused: paused}
	entryID := s.cron.Schedule(trigger, cron.FuncJob(func() {
		s.fire(id, trigger)
	}))
	j.entryID = entryID
	s.jobs[id] = j
}

func (s *Scheduler) fire(id string, trigger Trigger) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	paused := ok && j.paused
	s.mu.Unlock()
	if !ok || paused {
		return
	}

	if trigger.oneShot() {
		defer s.Remove(id)
	}

	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	go func() {
		defer s.sem.Release(1)
		j.fn(context.Background())
	}()
}

// Reschedule replaces id's trigger in place, keeping the same callable and
// pause flag.
func (s *Scheduler) Reschedule(id string, trigger Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("scheduler: reschedule: no job for id %s", id)
	}
	s.installLocked(id, trigger, j.fn, j.paused)
	return nil
}

// Remove removes id's job. Does not signal a currently executing run.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		s.cron.Remove(j.entryID)
		delete(s.jobs, id)
	}
}

// Pause marks id paused: its trigger keeps firing on schedule, but fire()
// is a no-op while paused. The job remains addressable by id.
func (s *Scheduler) Pause(id string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("scheduler: pause: no job for id %s", id)
	}
	j.paused = paused
	return nil
}

// JobInfo is the read-only view Get returns.
type JobInfo struct {
	Paused  bool
	Trigger Trigger
	Next    time.Time
}

// Get returns id's current job info, if any, including its next fire time
// per the underlying cron.Entry.
func (s *Scheduler) Get(id string) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	entry := s.cron.Entry(j.entryID)
	return JobInfo{Paused: j.paused, Trigger: j.trigger, Next: entry.Next}, true
}
