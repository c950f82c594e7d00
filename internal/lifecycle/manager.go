// Package lifecycle records the user's purchase decisions.
//
// Every operation is a sequence of independent store writes followed by a
// timer side effect. The product write always comes first and is never
// rolled back: only its failure is returned to the caller, later failures
// are logged.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/metrics"
	"github.com/MrSnakeDoc/pause/internal/store"
)

// Actions, as reported to metrics and logs.
const (
	ActionDontNeedIt    = "dontNeedIt"
	ActionSleepOnIt     = "sleepOnIt"
	ActionNeedIt        = "needIt"
	ActionChangedMyMind = "changedMyMind"
)

// Timers is the part of the timer subsystem the manager drives.
type Timers interface {
	Arm(id string, when time.Time) error
	Disarm(id string)
}

type Manager struct {
	entities *store.Entities
	timers   Timers
	logger   logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewManager(entities *store.Entities, timers Timers, log logger.Logger) *Manager {
	return &Manager{
		entities: entities,
		timers:   timers,
		logger:   log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithClock overrides the time source (tests).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithIDGenerator overrides reminder id generation (tests).
func (m *Manager) WithIDGenerator(newID func() string) *Manager {
	m.newID = newID
	return m
}

// DontNeedIt records the terminal dontNeedIt state. When reminderID is set
// (the user decided early from a reminder prompt), that reminder is
// completed and its timer disarmed.
func (m *Manager) DontNeedIt(ctx context.Context, p domain.Product, reminderID string) (domain.Product, error) {
	saved, err := m.saveProduct(ctx, p, domain.StateDontNeedIt)
	if err != nil {
		return domain.Product{}, err
	}
	metrics.LifecycleActions.WithLabelValues(ActionDontNeedIt).Inc()

	if reminderID != "" {
		m.timers.Disarm(reminderID)
		if _, _, err := m.entities.UpdateReminder(ctx, reminderID, func(r *domain.Reminder) { r.Complete() }); err != nil {
			m.logger.Error("failed to complete reminder after early decision",
				logger.ProductKey(saved.Key),
				logger.ReminderID(reminderID),
				logger.Error(err))
		}
	}

	m.logger.Info("product marked as not needed", logger.ProductKey(saved.Key))
	return saved, nil
}

// SleepOnIt defers the decision for d. The returned reminder exists in the
// store unless a later step failed, which is only logged. tabID, when set,
// marks the reminder as just created by that tab.
func (m *Manager) SleepOnIt(ctx context.Context, p domain.Product, d time.Duration, tabID string) (domain.Reminder, error) {
	if d <= 0 {
		return domain.Reminder{}, fmt.Errorf("%w: %v", domain.ErrInvalidDuration, d)
	}

	saved, err := m.saveProduct(ctx, p, domain.StateSleepingOnIt)
	if err != nil {
		return domain.Reminder{}, err
	}
	metrics.LifecycleActions.WithLabelValues(ActionSleepOnIt).Inc()

	r := domain.NewReminder(m.newID(), saved.Key, m.now(), d)
	log := m.logger.With(logger.ProductKey(saved.Key), logger.ReminderID(r.ID))

	// the marker goes first so the tab never sees its own reminder unmarked;
	// the gate leaves it in place until the reminder is stored
	if tabID != "" {
		if err := m.entities.SetTabSession(ctx, tabID, domain.TabSession{JustCreatedReminderID: r.ID}); err != nil {
			log.Warn("failed to mark reminder on tab session",
				logger.TabID(tabID),
				logger.Error(err))
		}
	}

	if err := m.entities.AppendReminder(ctx, r); err != nil {
		log.Error("failed to persist reminder", logger.Error(err))
	}

	if err := m.timers.Arm(r.ID, r.When()); err != nil {
		log.Warn("reminder saved without a live timer", logger.Error(err))
	}

	log.Info("sleeping on it",
		logger.Duration("duration", d),
		logger.Time("reminder_time", r.When()))
	return r, nil
}

// NeedIt records the terminal iNeedThis state. When reminderID is set the
// reminder is deleted and its timer disarmed.
func (m *Manager) NeedIt(ctx context.Context, productKey, reminderID string) (domain.Product, error) {
	p, err := m.entities.UpsertProduct(ctx, productKey, func(p *domain.Product, _ bool) {
		p.State = domain.StateINeedThis
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to save product %s: %w", productKey, err)
	}
	metrics.LifecycleActions.WithLabelValues(ActionNeedIt).Inc()

	m.dropReminder(ctx, productKey, reminderID)

	m.logger.Info("product marked as needed", logger.ProductKey(productKey))
	return p, nil
}

// ChangedMyMind returns the product to neutral so it can be prompted
// again. An unknown product is left absent. When reminderID is set the
// reminder is deleted and its timer disarmed.
func (m *Manager) ChangedMyMind(ctx context.Context, productKey, reminderID string) (domain.Product, error) {
	p, found, err := m.entities.UpdateProduct(ctx, productKey, func(p *domain.Product) {
		p.State = domain.StateNone
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to save product %s: %w", productKey, err)
	}
	metrics.LifecycleActions.WithLabelValues(ActionChangedMyMind).Inc()

	m.dropReminder(ctx, productKey, reminderID)

	if !found {
		m.logger.Debug("changed mind about an unknown product", logger.ProductKey(productKey))
		return domain.Product{Key: productKey}, nil
	}
	m.logger.Info("product back to neutral", logger.ProductKey(productKey))
	return p, nil
}

func (m *Manager) saveProduct(ctx context.Context, fresh domain.Product, state domain.ProductState) (domain.Product, error) {
	fresh.State = state
	if err := fresh.Validate(); err != nil {
		return domain.Product{}, err
	}

	saved, err := m.entities.UpsertProduct(ctx, fresh.Key, func(p *domain.Product, _ bool) {
		p.Overlay(fresh)
		p.State = state
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to save product %s: %w", fresh.Key, err)
	}
	return saved, nil
}

func (m *Manager) dropReminder(ctx context.Context, productKey, reminderID string) {
	if reminderID == "" {
		return
	}
	m.timers.Disarm(reminderID)

	deleted, err := m.entities.DeleteReminder(ctx, reminderID)
	if err != nil {
		m.logger.Error("failed to delete reminder",
			logger.ProductKey(productKey),
			logger.ReminderID(reminderID),
			logger.Error(err))
		return
	}
	if !deleted {
		m.logger.Debug("reminder already gone",
			logger.ProductKey(productKey),
			logger.ReminderID(reminderID))
	}
}
