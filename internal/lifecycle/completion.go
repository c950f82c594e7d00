package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/metrics"
	"github.com/MrSnakeDoc/pause/internal/notify"
	"github.com/MrSnakeDoc/pause/internal/store"
)

const completionTitle = "You didn't need it after all!"

// Completer runs when a reminder matures: the product becomes dontNeedIt,
// the reminder completed, and the user is congratulated.
type Completer struct {
	entities *store.Entities
	sender   notify.Sender
	logger   logger.Logger
}

func NewCompleter(entities *store.Entities, sender notify.Sender, log logger.Logger) *Completer {
	return &Completer{
		entities: entities,
		sender:   sender,
		logger:   log,
	}
}

// OnFire adapts Complete to the timer callback signature.
func (c *Completer) OnFire(ctx context.Context) func(id string) {
	return func(id string) {
		if _, err := c.Complete(ctx, id, metrics.SourceTimer); err != nil {
			c.logger.Error("reminder completion failed",
				logger.ReminderID(id),
				logger.Error(err))
		}
	}
}

// Complete finishes the reminder with the given id and reports whether it
// did anything. A reminder that is absent or no longer pending is skipped
// silently, so a duplicate fire is harmless. Each step is attempted even
// when an earlier one failed; failures are logged and joined.
func (c *Completer) Complete(ctx context.Context, reminderID, source string) (bool, error) {
	log := c.logger.With(logger.ReminderID(reminderID), logger.String("source", source))

	r, found, err := c.entities.Reminder(ctx, reminderID)
	if err != nil {
		log.Error("failed to look up reminder", logger.Error(err))
		return false, fmt.Errorf("look up reminder %s: %w", reminderID, err)
	}
	if !found {
		log.Debug("reminder gone, nothing to complete")
		return false, nil
	}
	if !r.Pending() {
		log.Debug("reminder already settled", logger.String("status", string(r.Status)))
		return false, nil
	}
	log = log.With(logger.ProductKey(r.ProductKey))

	var errs []error

	name := r.ProductKey
	if p, ok, err := c.entities.Product(ctx, r.ProductKey); err != nil {
		log.Warn("failed to look up product", logger.Error(err))
		errs = append(errs, err)
	} else if ok && p.Name != "" {
		name = p.Name
	}

	if _, err := c.entities.UpsertProduct(ctx, r.ProductKey, func(p *domain.Product, _ bool) {
		p.State = domain.StateDontNeedIt
	}); err != nil {
		log.Error("failed to mark product as not needed", logger.Error(err))
		errs = append(errs, err)
	}

	if _, _, err := c.entities.UpdateReminder(ctx, reminderID, func(r *domain.Reminder) { r.Complete() }); err != nil {
		log.Error("failed to complete reminder", logger.Error(err))
		errs = append(errs, err)
	}

	if _, err := c.sender.Create(ctx, notify.Notification{
		Title:      completionTitle,
		Body:       CompletionMessage(name, r.Elapsed()),
		ProductKey: r.ProductKey,
	}); err != nil {
		log.Warn("failed to send completion notification", logger.Error(err))
		errs = append(errs, err)
	}

	metrics.RemindersCompleted.WithLabelValues(source).Inc()
	log.Info("reminder completed")
	return true, errors.Join(errs...)
}

// CompletionMessage is the body of the notification sent on completion.
func CompletionMessage(productName string, waited time.Duration) string {
	return fmt.Sprintf("You slept on %s for %s and never came back for it. Money saved!",
		productName, domain.HumanDuration(waited))
}
