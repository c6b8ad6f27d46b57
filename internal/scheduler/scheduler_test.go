package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagarr/tagarr/internal/testutil"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(testutil.NopLogger())
	require.NoError(t, err)
	return s
}

func TestRegisterTask(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Stop()

	cfg := TaskConfig{ID: "b", Name: "B", Cron: "0 3 * * *", Func: func(context.Context) error { return nil }}
	require.NoError(t, s.RegisterTask(cfg))
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "a", Name: "A", Cron: "*/5 * * * *", Func: cfg.Func}))

	err := s.RegisterTask(cfg)
	assert.Error(t, err, "duplicate id")

	err = s.RegisterTask(TaskConfig{ID: "c", Cron: "not a cron", Func: cfg.Func})
	assert.Error(t, err, "invalid cron")

	tasks := s.ListTasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()
	defer s.Stop()

	done := make(chan struct{})
	failure := errors.New("registry down")
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "run",
		Cron: "0 3 * * *",
		Func: func(context.Context) error {
			close(done)
			return failure
		},
	}))

	require.NoError(t, s.RunNow("run"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}

	assert.Eventually(t, func() bool {
		info, err := s.GetTask("run")
		return err == nil && info.LastRun != nil && info.LastError == "registry down" && !info.Running
	}, 2*time.Second, 10*time.Millisecond)

	info, err := s.GetTask("run")
	require.NoError(t, err)
	assert.NotNil(t, info.NextRun)
}

func TestRunNow_Unknown(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Stop()

	err := s.RunNow("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = s.GetTask("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStart_RunOnStart(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{}, 1)
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "startup",
		Cron:       "0 3 * * *",
		RunOnStart: true,
		Func: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("run-on-start task did not execute")
	}
}

func TestStop_CancelsRunningTask(t *testing.T) {
	s := newTestScheduler(t)

	started := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "long",
		Cron: "0 3 * * *",
		Func: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))
	s.Start()
	require.NoError(t, s.RunNow("long"))
	<-started

	require.NoError(t, s.Stop())

	info, err := s.GetTask("long")
	require.NoError(t, err)
	assert.False(t, info.Running)
	assert.Equal(t, context.Canceled.Error(), info.LastError)
}
