package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func noopJob(context.Context) {}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, time.Hour, noopJob, noopJob, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	first := s.Status()
	require.True(t, first.Running)

	time.Sleep(10 * time.Millisecond)
	s.Start(ctx)
	second := s.Status()

	// A second Start must not re-arm the timers.
	assert.Equal(t, first.NextCycle, second.NextCycle)
	assert.Equal(t, first.NextCleanup, second.NextCleanup)

	s.Stop()
	assert.False(t, s.Status().Running)
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, time.Hour, noopJob, noopJob, discardLogger())
	s.Stop()
	assert.False(t, s.Status().Running)
}

func TestExecuteNowRunsCycle(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New(time.Hour, time.Hour, func(context.Context) { runs.Add(1) }, noopJob, discardLogger())

	require.NoError(t, s.ExecuteNow(context.Background()))
	require.NoError(t, s.ExecuteNow(context.Background()))
	assert.Equal(t, int32(2), runs.Load())
}

func TestExecuteNowRefusesOverlap(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	s := New(time.Hour, time.Hour, func(context.Context) {
		close(started)
		<-release
	}, noopJob, discardLogger())

	done := make(chan error, 1)
	go func() { done <- s.ExecuteNow(context.Background()) }()

	<-started
	assert.ErrorIs(t, s.ExecuteNow(context.Background()), ErrCycleRunning)

	close(release)
	require.NoError(t, <-done)

	// Token returned; manual execution works again.
	assert.NoError(t, s.ExecuteNow(context.Background()))
}

func TestTimerFiresCycle(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	s := New(20*time.Millisecond, time.Hour, func(context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, noopJob, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle timer never fired")
	}
}

func TestTimerFiresCleanup(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	s := New(time.Hour, 20*time.Millisecond, noopJob, func(context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup timer never fired")
	}
}

func TestStopPreventsFurtherFires(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New(20*time.Millisecond, time.Hour, func(context.Context) { runs.Add(1) }, noopJob, discardLogger())

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	// Allow a fire that raced the cancel to drain before sampling.
	time.Sleep(30 * time.Millisecond)
	settled := runs.Load()
	require.Positive(t, settled)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, runs.Load())
}

func TestStopDoesNotInterruptInFlightCycle(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	interrupted := make(chan bool, 1)
	s := New(20*time.Millisecond, time.Hour, func(ctx context.Context) {
		close(started)
		select {
		case <-ctx.Done():
			interrupted <- true
		case <-release:
			interrupted <- false
		}
	}, noopJob, discardLogger())

	s.Start(context.Background())
	<-started
	s.Stop()

	// Give a cancel that wrongly reached the job context time to land.
	time.Sleep(50 * time.Millisecond)
	close(release)
	assert.False(t, <-interrupted, "Stop must not cancel the running cycle's context")
}

func TestTimerSkipsWhileManualCycleRuns(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	s := New(20*time.Millisecond, time.Hour, func(context.Context) {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
	}, noopJob, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	done := make(chan error, 1)
	go func() { done <- s.ExecuteNow(ctx) }()
	<-started

	// Let several timer fires happen while the manual cycle holds the gate.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	require.NoError(t, <-done)
}
