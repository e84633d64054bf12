package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphalab/pkg/config"
	"github.com/wonny/alphalab/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32
	calls    int32
	block    chan struct{}
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.calls, 1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n <= atomic.LoadInt32(&j.failures) {
		return errors.New("transient")
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(nil).WithRetry(2, 0)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "@daily"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "0 30 22 * * *"}))

	assert.Error(t, s.AddJob(&countingJob{name: "a", schedule: "@daily"}), "duplicate")
	assert.Error(t, s.AddJob(&countingJob{name: "c", schedule: "not a cron"}))
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@daily"}))
	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.cron.Entries())
	assert.Error(t, s.RemoveJob("a"))
}

func TestRunNowRetries(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&job.calls))
}

func TestRunNowBoundedRetries(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "broken", schedule: "@daily", failures: 100}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow(context.Background(), "broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts, "first try plus two retries")
	assert.Equal(t, "transient", result.Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Zero(t, stats.SuccessRate)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunNowWarnsOnlyBeforeRetry(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&config.Config{LogLevel: "info"}, &buf)
	s := New(log).WithRetry(2, 0)
	require.NoError(t, s.AddJob(&countingJob{name: "broken", schedule: "@daily", failures: 100}))

	_, err := s.RunNow(context.Background(), "broken")
	require.NoError(t, err)

	output := buf.String()
	assert.Equal(t, 2, strings.Count(output, "Job execution failed, retrying"), "no retry follows the last attempt")
}

func TestRunNowUnknown(t *testing.T) {
	_, err := newTestScheduler().RunNow(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRunNowSkipsOverlappingRun(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "slow", schedule: "@daily", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job))

	done := make(chan JobResult)
	go func() {
		r, _ := s.RunNow(context.Background(), "slow")
		done <- r
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&job.calls) == 1 }, time.Second, 5*time.Millisecond)

	skipped, err := s.RunNow(context.Background(), "slow")
	require.NoError(t, err)
	assert.False(t, skipped.Success)
	assert.Equal(t, "already running", skipped.Error)

	close(job.block)
	first := <-done
	assert.True(t, first.Success)

	history, err := s.GetJobHistory("slow")
	require.NoError(t, err)
	assert.Len(t, history.Results, 1)
}

func TestAttemptTimeout(t *testing.T) {
	s := New(nil).WithRetry(0, 0).WithTimeout(10 * time.Millisecond)
	job := &countingJob{name: "hang", schedule: "@daily", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow(context.Background(), "hang")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "deadline")
}

func TestNextRun(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@every 1h"}))
	s.Start()
	defer s.Stop()

	next, err := s.NextRun("a")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, time.Minute)

	_, err = s.NextRun("nope")
	assert.Error(t, err)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0, StartTime: time.Unix(int64(i), 0)})
	}
	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.Latest(5), 5)
	assert.Empty(t, (&JobHistory{}).Latest(3))
	assert.InDelta(t, 0.5, h.SuccessRate(), 1e-9)
	assert.Len(t, h.Failures(), historyLimit/2)

	last := h.lastWhere(func(r JobResult) bool { return r.Success })
	require.NotNil(t, last)
	assert.Equal(t, int64(historyLimit+8), last.Unix())
}
