package gate

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/store"
)

// RelevantKeys are the collections whose changes can alter a decision.
var RelevantKeys = []string{
	store.KeyProducts,
	store.KeyReminders,
	store.KeySnoozeUntil,
	store.KeyGlobalClosed,
}

// Watch emits the decision for req now and again after every relevant
// change, re-evaluating from scratch each time. A decision equal to the
// last one emitted is skipped. An earlyReturn decision is also re-checked
// when its reminder falls due. Watch returns when ctx is done, or with the
// first error from Decide or emit.
func (s *Service) Watch(ctx context.Context, notifier store.Notifier, req Request, emit func(Decision) error) error {
	trigger := make(chan struct{}, 1)
	unsubscribe := notifier.Subscribe(func(c store.Change) {
		if !c.Touches(RelevantKeys...) {
			return
		}
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	var (
		last     Decision
		emitted  bool
		deadline *time.Timer
	)
	defer func() {
		if deadline != nil {
			deadline.Stop()
		}
	}()

	for {
		d, err := s.Decide(ctx, req)
		if err != nil {
			return err
		}

		if !emitted || changed(last, d) {
			if err := emit(d); err != nil {
				return err
			}
			last, emitted = d, true
		}

		if deadline != nil {
			deadline.Stop()
			deadline = nil
		}
		var due <-chan time.Time
		if d.View == ViewEarlyReturn && d.Reminder != nil {
			deadline = time.NewTimer(d.Reminder.When().Sub(s.now()) + time.Millisecond)
			due = deadline.C
		}

		select {
		case <-ctx.Done():
			s.logger.Debug("decision watch ended", logger.TabID(req.TabID))
			return nil
		case <-trigger:
		case <-due:
		}
	}
}

func changed(a, b Decision) bool {
	if a.View != b.View || a.Stale != b.Stale {
		return true
	}
	if (a.Reminder == nil) != (b.Reminder == nil) {
		return true
	}
	if a.Reminder != nil && *a.Reminder != *b.Reminder {
		return true
	}
	if (a.Product == nil) != (b.Product == nil) {
		return true
	}
	if a.Product == nil {
		return false
	}
	// CapturedAt moves on every extraction and is not worth an emission
	pa, pb := *a.Product, *b.Product
	pa.CapturedAt, pb.CapturedAt = 0, 0
	return pa != pb
}
