package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/metrics"
)

// Timers is the in-memory schedule of reminder wake-ups, one one-shot job
// per reminder id. It is advisory: nothing here survives a restart, and
// Restore rebuilds it from the persisted reminders.
type Timers struct {
	scheduler gocron.Scheduler
	logger    logger.Logger
	now       func() time.Time
	wall      func() time.Time

	mu     sync.Mutex
	seq    uint64
	armed  map[string]armedTimer
	onFire func(id string)
}

type armedTimer struct {
	job gocron.Job
	seq uint64
}

// NewTimers creates the schedule. Jobs armed before Start wait for it.
func NewTimers(log logger.Logger) (*Timers, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w: %w", domain.ErrSchedulingUnavailable, err)
	}

	return &Timers{
		scheduler: s,
		logger:    log,
		now:       time.Now,
		wall:      time.Now,
		armed:     make(map[string]armedTimer),
	}, nil
}

// WithClock overrides the clock Restore uses to tell future from overdue.
func (t *Timers) WithClock(now func() time.Time) *Timers {
	t.now = now
	return t
}

// Start begins firing armed timers
func (t *Timers) Start() {
	t.scheduler.Start()
	t.logger.Info("timer subsystem started", logger.Int("armed", t.Len()))
}

// Stop shuts the scheduler down; armed timers are dropped
func (t *Timers) Stop() error {
	t.mu.Lock()
	t.armed = make(map[string]armedTimer)
	t.mu.Unlock()
	metrics.TimersArmed.Set(0)

	if err := t.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}

// OnFire registers the single callback invoked with a timer id when it
// matures. A later call replaces the earlier handler.
func (t *Timers) OnFire(handler func(id string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFire = handler
}

// Arm schedules a one-shot wake-up for id at when, replacing any wake-up
// already armed for id. A time in the past fires as soon as possible.
func (t *Timers) Arm(id string, when time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeLocked(id)

	// gocron runs on the wall clock whatever t.now says
	start := gocron.OneTimeJobStartImmediately()
	if when.After(t.wall()) {
		start = gocron.OneTimeJobStartDateTime(when)
	}

	t.seq++
	job, err := t.newJob(id, start)
	if errors.Is(err, gocron.ErrOneTimeJobStartDateTimePast) {
		// when slipped into the past between the check and NewJob
		job, err = t.newJob(id, gocron.OneTimeJobStartImmediately())
	}
	if err != nil {
		metrics.TimerArmFailures.Inc()
		t.logger.Error("failed to arm timer",
			logger.ReminderID(id),
			logger.Time("when", when),
			logger.Error(err))
		return fmt.Errorf("arm %s: %w: %w", id, domain.ErrSchedulingUnavailable, err)
	}

	t.armed[id] = armedTimer{job: job, seq: t.seq}
	metrics.TimersArmed.Set(float64(len(t.armed)))

	t.logger.Debug("timer armed",
		logger.ReminderID(id),
		logger.Time("when", when))
	return nil
}

func (t *Timers) newJob(id string, start gocron.OneTimeJobStartAtOption) (gocron.Job, error) {
	return t.scheduler.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(t.fire, id, t.seq),
		gocron.WithName(id),
	)
}

// Disarm cancels the wake-up for id. Unknown ids are ignored.
func (t *Timers) Disarm(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.removeLocked(id) {
		t.logger.Debug("timer disarmed", logger.ReminderID(id))
	}
}

func (t *Timers) removeLocked(id string) bool {
	armed, ok := t.armed[id]
	if !ok {
		return false
	}
	delete(t.armed, id)
	metrics.TimersArmed.Set(float64(len(t.armed)))

	if err := t.scheduler.RemoveJob(armed.job.ID()); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		t.logger.Warn("failed to remove timer job",
			logger.ReminderID(id),
			logger.Error(err))
	}
	return true
}

// IsArmed reports whether a wake-up is pending for id.
func (t *Timers) IsArmed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.armed[id]
	return ok
}

// Len returns the number of armed timers.
func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.armed)
}

func (t *Timers) fire(id string, seq uint64) {
	t.mu.Lock()
	armed, ok := t.armed[id]
	if !ok || armed.seq != seq {
		// disarmed or re-armed since this job was created
		t.mu.Unlock()
		return
	}
	delete(t.armed, id)
	metrics.TimersArmed.Set(float64(len(t.armed)))
	handler := t.onFire
	t.mu.Unlock()

	if handler == nil {
		t.logger.Warn("timer fired with no handler registered", logger.ReminderID(id))
		return
	}
	handler(id)
}

// Restore re-arms every pending reminder still in the future and hands
// each overdue one to overdue, synchronously, instead of arming it.
// Completed and dismissed reminders are skipped.
func (t *Timers) Restore(reminders []domain.Reminder, overdue func(domain.Reminder)) (armed, late int) {
	now := t.now()
	for _, r := range reminders {
		if !r.Pending() {
			continue
		}
		if r.IsDue(now) {
			late++
			overdue(r)
			continue
		}
		if err := t.Arm(r.ID, r.When()); err != nil {
			// already logged; the due sweeper or the next restart catches it
			continue
		}
		armed++
	}
	return armed, late
}
