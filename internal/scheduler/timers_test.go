package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/logger"
)

func newTimers(t *testing.T) *Timers {
	t.Helper()
	timers, err := NewTimers(logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = timers.Stop() })
	return timers
}

func fired(timers *Timers) <-chan string {
	ch := make(chan string, 8)
	timers.OnFire(func(id string) { ch <- id })
	return ch
}

func TestTimers_ArmFires(t *testing.T) {
	timers := newTimers(t)
	ch := fired(timers)
	timers.Start()

	require.NoError(t, timers.Arm("r1", time.Now().Add(50*time.Millisecond)))
	require.True(t, timers.IsArmed("r1"))

	select {
	case id := <-ch:
		require.Equal(t, "r1", id)
	case <-time.After(3 * time.Second):
		t.Fatal("timer did not fire")
	}
	require.Eventually(t, func() bool { return !timers.IsArmed("r1") }, time.Second, 10*time.Millisecond)
}

func TestTimers_ArmedBeforeStartWaitsForStart(t *testing.T) {
	timers := newTimers(t)
	ch := fired(timers)

	require.NoError(t, timers.Arm("r1", time.Now().Add(-time.Second)))

	select {
	case <-ch:
		t.Fatal("fired before start")
	case <-time.After(100 * time.Millisecond):
	}

	timers.Start()
	select {
	case id := <-ch:
		require.Equal(t, "r1", id)
	case <-time.After(3 * time.Second):
		t.Fatal("timer did not fire after start")
	}
}

func TestTimers_ArmDeadlinePassingDuringArmStillFires(t *testing.T) {
	timers := newTimers(t)
	// the deadline looks future at the check but is past when the job is built
	when := time.Now().Add(-time.Second)
	timers.wall = func() time.Time { return when.Add(-time.Minute) }
	ch := fired(timers)
	timers.Start()

	require.NoError(t, timers.Arm("r1", when))
	require.True(t, timers.IsArmed("r1"))

	select {
	case id := <-ch:
		require.Equal(t, "r1", id)
	case <-time.After(3 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimers_Disarm(t *testing.T) {
	timers := newTimers(t)
	ch := fired(timers)
	timers.Start()

	require.NoError(t, timers.Arm("r1", time.Now().Add(100*time.Millisecond)))
	timers.Disarm("r1")
	timers.Disarm("r1")
	timers.Disarm("unknown")
	require.Zero(t, timers.Len())

	select {
	case id := <-ch:
		t.Fatalf("disarmed timer %s fired", id)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestTimers_RearmReplaces(t *testing.T) {
	timers := newTimers(t)
	ch := fired(timers)
	timers.Start()

	require.NoError(t, timers.Arm("r1", time.Now().Add(time.Hour)))
	require.NoError(t, timers.Arm("r1", time.Now().Add(50*time.Millisecond)))
	require.Equal(t, 1, timers.Len())

	select {
	case id := <-ch:
		require.Equal(t, "r1", id)
	case <-time.After(3 * time.Second):
		t.Fatal("re-armed timer did not fire")
	}

	select {
	case <-ch:
		t.Fatal("timer fired twice")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTimers_Restore(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	timers := newTimers(t)
	timers.WithClock(func() time.Time { return now })

	past := domain.NewReminder("past", "amazon-a", now.Add(-2*time.Hour), time.Hour)
	future := domain.NewReminder("future", "amazon-b", now, time.Hour)
	done := domain.NewReminder("done", "amazon-c", now.Add(-2*time.Hour), time.Hour)
	done.Complete()

	var overdue []string
	armed, late := timers.Restore([]domain.Reminder{past, future, done}, func(r domain.Reminder) {
		overdue = append(overdue, r.ID)
	})

	require.Equal(t, 1, armed)
	require.Equal(t, 1, late)
	require.Equal(t, []string{"past"}, overdue)
	require.True(t, timers.IsArmed("future"))
	require.False(t, timers.IsArmed("past"))
	require.False(t, timers.IsArmed("done"))
}
