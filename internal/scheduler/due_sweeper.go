package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/metrics"
	"github.com/MrSnakeDoc/pause/internal/store"
)

const (
	// DefaultSweepInterval is how often due reminders are looked for
	DefaultSweepInterval = time.Minute
)

// Purger is implemented by backends that keep expired entries around until
// asked to drop them.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// DueSweeper periodically completes pending reminders whose time has passed.
// It catches reminders whose wake-up failed to arm or was lost.
type DueSweeper struct {
	entities  *store.Entities
	completer Completer
	purger    Purger
	logger    logger.Logger
	interval  time.Duration
	now       func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewDueSweeper creates a new due sweeper. purger may be nil.
func NewDueSweeper(
	entities *store.Entities,
	completer Completer,
	purger Purger,
	log logger.Logger,
	interval time.Duration,
) *DueSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &DueSweeper{
		entities:  entities,
		completer: completer,
		purger:    purger,
		logger:    log,
		interval:  interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// WithClock overrides the time source (tests).
func (ds *DueSweeper) WithClock(now func() time.Time) *DueSweeper {
	ds.now = now
	return ds
}

// Start sweeps once, then every interval until Stop or ctx is done
func (ds *DueSweeper) Start(ctx context.Context) {
	ds.run(ctx)

	ticker := time.NewTicker(ds.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ds.run(ctx)
			case <-ds.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the sweeper
func (ds *DueSweeper) Stop() {
	ds.stopOnce.Do(func() { close(ds.stopCh) })
}

func (ds *DueSweeper) run(ctx context.Context) {
	if _, err := ds.Sweep(ctx); err != nil {
		ds.logger.Error("due sweep failed", logger.Error(err))
	}
	if ds.purger == nil {
		return
	}
	n, err := ds.purger.Purge(ctx)
	if err != nil {
		ds.logger.Warn("failed to purge expired entries", logger.Error(err))
		return
	}
	if n > 0 {
		ds.logger.Debug("purged expired entries", logger.Int("count", n))
	}
}

// Sweep completes every due reminder and returns how many it completed.
func (ds *DueSweeper) Sweep(ctx context.Context) (int, error) {
	pending, err := ds.entities.PendingReminders(ctx)
	if err != nil {
		return 0, err
	}

	now := ds.now()
	completed := 0
	for _, r := range pending {
		if !r.IsDue(now) {
			continue
		}
		done, err := ds.completer.Complete(ctx, r.ID, metrics.SourceSweep)
		if err != nil {
			ds.logger.Warn("failed to complete due reminder",
				logger.ReminderID(r.ID),
				logger.ProductKey(r.ProductKey),
				logger.Error(err))
			continue
		}
		if done {
			completed++
		}
	}

	if completed > 0 {
		ds.logger.Info("due sweep completed reminders",
			logger.Int("completed", completed))
	} else {
		ds.logger.Debug("no due reminders")
	}
	return completed, nil
}
