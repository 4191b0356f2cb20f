package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestAddJobValidation(t *testing.T) {
	s := newTestScheduler(t)

	assert.Error(t, s.AddJob(Job{Cron: "* * * * *", Func: func(context.Context) error { return nil }}))
	assert.Error(t, s.AddJob(Job{ID: "nofunc", Cron: "* * * * *"}))
	assert.Error(t, s.AddJob(Job{ID: "badcron", Cron: "not a cron", Func: func(context.Context) error { return nil }}))

	require.NoError(t, s.AddJob(Job{ID: "ok", Cron: "*/5 * * * *", Func: func(context.Context) error { return nil }}))
	assert.Error(t, s.AddJob(Job{ID: "ok", Cron: "*/5 * * * *", Func: func(context.Context) error { return nil }}))
}

func TestInstantAfterStartRunsJob(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.AddJob(Job{
		ID:                "instant",
		Name:              "Instant",
		Cron:              "0 0 1 1 *",
		Func:              func(context.Context) error { runs.Add(1); return nil },
		Singleton:         true,
		InstantAfterStart: true,
	}))
	s.Start()

	assert.Eventually(t, func() bool {
		job, ok := s.GetJob("instant")
		return ok && runs.Load() == 1 && job.Status == JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	job, ok := s.GetJob("instant")
	require.True(t, ok)
	assert.Equal(t, 1, job.RunCount)
	assert.False(t, job.NextRun.IsZero())
}

func TestFailedJobRecordsError(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddJob(Job{
		ID:   "failing",
		Cron: "0 0 1 1 *",
		Func: func(context.Context) error { return errors.New("boom") },
	}))
	s.Start()
	require.NoError(t, s.RunJobNow("failing"))

	assert.Eventually(t, func() bool {
		job, _ := s.GetJob("failing")
		return job.Status == JobStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	job, _ := s.GetJob("failing")
	assert.Equal(t, 1, job.ErrorCount)
	assert.Equal(t, "boom", job.LastError)
}

func TestDisabledJobSkips(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.AddJob(Job{
		ID:   "disabled",
		Cron: "0 0 1 1 *",
		Func: func(context.Context) error { runs.Add(1); return nil },
	}))
	require.NoError(t, s.SetEnabled("disabled", false))
	s.Start()
	require.NoError(t, s.RunJobNow("disabled"))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, runs.Load())
	assert.Error(t, s.RunJobNow("missing"))

	jobs := s.GetJobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Enabled)
}
