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

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counting job" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestRegisterValidation(t *testing.T) {
	s := New(nil)

	assert.ErrorIs(t, s.Register(nil, Every(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "job"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&countingJob{name: "job"}, Every(time.Second)))
	assert.ErrorIs(t, s.Register(&countingJob{name: "job"}, Every(time.Second)), ErrJobAlreadyExists)
}

func TestStartStopLifecycle(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Register(&countingJob{name: "job"}, Every(time.Hour)))

	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestRunNow(t *testing.T) {
	s := New(nil)
	job := &countingJob{name: "sweep"}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "sweep", result.JobName)
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunNowRecordsFailure(t *testing.T) {
	s := New(nil)
	job := &countingJob{name: "flaky", err: errors.New("backend down")}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "flaky")
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, err, result.Error)
}

func TestListJobs(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Register(&countingJob{name: "sweep"}, Every(30*time.Second)))
	require.NoError(t, s.Register(&countingJob{name: "health"}, Every(time.Minute)))

	infos := s.ListJobs()
	require.Len(t, infos, 2)

	byName := make(map[string]JobInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.Equal(t, "every 30s", byName["sweep"].Schedule)
	assert.Equal(t, "counting job", byName["sweep"].Description)
	assert.False(t, byName["sweep"].NextRun.IsZero())

	_, _ = s.RunNow(context.Background(), "sweep")
	for _, info := range s.ListJobs() {
		if info.Name == "sweep" {
			require.NotNil(t, info.LastResult)
			assert.True(t, info.LastResult.Success)
		}
	}
}

func TestEveryClampsSubSecondIntervals(t *testing.T) {
	sched := Every(10 * time.Millisecond)
	assert.Equal(t, "every 1s", sched.String())

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(time.Second), sched.Next(base))

	assert.Equal(t, base.Add(5*time.Minute), Every(5*time.Minute).Next(base))
}
