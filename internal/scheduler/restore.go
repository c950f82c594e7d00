package scheduler

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/metrics"
	"github.com/MrSnakeDoc/pause/internal/store"
)

// Completer finishes a reminder. It must be idempotent: a reminder that is
// absent or no longer pending reports false and a nil error.
type Completer interface {
	Complete(ctx context.Context, reminderID, source string) (bool, error)
}

// Restorer rebuilds the timer schedule from persisted reminders at startup.
type Restorer struct {
	entities  *store.Entities
	timers    *Timers
	completer Completer
	logger    logger.Logger
}

// NewRestorer creates a new restorer
func NewRestorer(
	entities *store.Entities,
	timers *Timers,
	completer Completer,
	log logger.Logger,
) *Restorer {
	return &Restorer{
		entities:  entities,
		timers:    timers,
		completer: completer,
		logger:    log,
	}
}

// Restore arms future reminders and completes overdue ones. Call it once,
// before the timers are started.
func (r *Restorer) Restore(ctx context.Context) error {
	r.logger.Info("restoring reminder timers from store")

	reminders, err := r.entities.Reminders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load reminders: %w", err)
	}

	armed, late := r.timers.Restore(reminders, func(rem domain.Reminder) {
		r.completeOverdue(ctx, rem)
	})

	r.logger.Info("restored reminder timers",
		logger.Int("reminders", len(reminders)),
		logger.Int("armed", armed),
		logger.Int("overdue", late))

	return nil
}

func (r *Restorer) completeOverdue(ctx context.Context, rem domain.Reminder) {
	done, err := r.completer.Complete(ctx, rem.ID, metrics.SourceOverdue)
	if err != nil {
		r.logger.Error("failed to complete overdue reminder",
			logger.ReminderID(rem.ID),
			logger.ProductKey(rem.ProductKey),
			logger.Error(err))
		return
	}
	if done {
		r.logger.Info("completed overdue reminder",
			logger.ReminderID(rem.ID),
			logger.ProductKey(rem.ProductKey))
	}
}
