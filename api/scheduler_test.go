package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/absence-engine/absence"
	"github.com/campuskit/absence-engine/digest"
)

// recordingRunner captures the days the scheduler asked for.
type recordingRunner struct {
	mu   sync.Mutex
	days []absence.Date
	err  error
}

func (r *recordingRunner) Run(_ context.Context, day absence.Date) (*digest.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days = append(r.days, day)
	return &digest.RunSummary{Day: day}, r.err
}

func (r *recordingRunner) ranDays() []absence.Date {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]absence.Date, len(r.days))
	copy(out, r.days)
	return out
}

// TestSchedulerRunNow: a tick aggregates the calendar day of the
// injected clock, not wall time.
func TestSchedulerRunNow(t *testing.T) {
	runner := &recordingRunner{}
	sched := NewDigestScheduler(runner, "0 18 * * *")
	sched.Now = func() time.Time {
		return time.Date(2025, time.July, 10, 18, 0, 0, 0, time.UTC)
	}

	sched.RunNow(context.Background())

	require.Len(t, runner.ranDays(), 1)
	assert.True(t, runner.ranDays()[0].Equal(absence.NewDate(2025, time.July, 10)))
}

// TestSchedulerRunNow_FailureIsLogged: a failing run never panics the
// scheduler; the next tick still fires.
func TestSchedulerRunNow_FailureIsLogged(t *testing.T) {
	runner := &recordingRunner{err: errors.New("store unavailable")}
	sched := NewDigestScheduler(runner, "0 18 * * *")

	sched.RunNow(context.Background())
	sched.RunNow(context.Background())

	assert.Len(t, runner.ranDays(), 2)
}

func TestSchedulerStart(t *testing.T) {
	t.Run("valid spec", func(t *testing.T) {
		sched := NewDigestScheduler(&recordingRunner{}, "0 18 * * *")
		require.NoError(t, sched.Start())
		sched.Stop()
	})

	t.Run("malformed spec", func(t *testing.T) {
		sched := NewDigestScheduler(&recordingRunner{}, "sometime in the evening")
		assert.Error(t, sched.Start())
	})

	t.Run("stop before start is a no-op", func(t *testing.T) {
		sched := NewDigestScheduler(&recordingRunner{}, "0 18 * * *")
		sched.Stop()
	})
}

// TestSchedulerTicks: with a short interval spec a real tick fires and
// runs the pipeline. Kept coarse so it stays timing-safe.
func TestSchedulerTicks(t *testing.T) {
	runner := &recordingRunner{}
	sched := NewDigestScheduler(runner, "@every 100ms")
	require.NoError(t, sched.Start())
	defer sched.Stop()

	deadline := time.After(3 * time.Second)
	for len(runner.ranDays()) == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never ticked")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
