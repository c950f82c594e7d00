// Package gate decides which prompt, if any, a product page shows.
//
// Evaluate is a pure function of a store snapshot; it never writes. The
// Service reads the snapshot, applies the write intents Evaluate returns,
// and keeps the page responsive when the store is slow.
package gate

import (
	"time"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/store"
)

// View is the prompt a page should display.
type View string

const (
	ViewHidden      View = "hidden"
	ViewProduct     View = "product"
	ViewEarlyReturn View = "earlyReturn"
	ViewOldFlame    View = "oldFlame"
)

// Reasons explain a decision in logs and API responses.
const (
	ReasonSnoozed        = "snoozed"
	ReasonDecided        = "decided"
	ReasonClosed         = "closed"
	ReasonNoReminder     = "noReminder"
	ReasonJustCreated    = "justCreated"
	ReasonBeforeDeadline = "beforeDeadline"
	ReasonPastDeadline   = "pastDeadline"
	ReasonFallback       = "fallback"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	View     View             `json:"view"`
	Reason   string           `json:"reason"`
	Product  *domain.Product  `json:"product,omitempty"`
	Reminder *domain.Reminder `json:"reminder,omitempty"`

	// Stale is set when the decision was not computed from a fresh read.
	Stale bool `json:"stale,omitempty"`

	// ClearSnooze asks the caller to remove an expired snooze flag.
	ClearSnooze bool `json:"-"`
	// ConsumeSession asks the caller to clear the tab's session marker. It
	// is only set once the marked reminder is visible in the snapshot.
	ConsumeSession bool `json:"-"`
}

// Evaluate decides the view for observed against snap at now.
//
// The checks short-circuit in this order: active snooze, terminal product
// state, global close, then the first pending reminder for the product.
func Evaluate(snap store.Snapshot, observed domain.Product, now time.Time) Decision {
	product := resolve(snap.Products, observed)
	// a marker naming a reminder not yet stored is kept for the next read
	d := Decision{
		Product:        &product,
		ConsumeSession: markerResolved(snap),
	}

	switch {
	case domain.SnoozeActive(snap.SnoozeUntil, now):
		return d.with(ViewHidden, ReasonSnoozed)
	case domain.SnoozeExpired(snap.SnoozeUntil, now):
		d.ClearSnooze = true
	}

	if product.State.Terminal() {
		return d.with(ViewHidden, ReasonDecided)
	}
	if snap.GlobalClosed {
		return d.with(ViewHidden, ReasonClosed)
	}

	reminder, ok := firstPending(snap.Reminders, product.Key)
	switch {
	case !ok:
		return d.with(ViewProduct, ReasonNoReminder)
	case reminder.ID == snap.Session.JustCreatedReminderID:
		return d.with(ViewProduct, ReasonJustCreated)
	}

	d.Reminder = &reminder
	if reminder.ReminderTime > now.UnixMilli() {
		return d.with(ViewEarlyReturn, ReasonBeforeDeadline)
	}
	return d.with(ViewOldFlame, ReasonPastDeadline)
}

func (d Decision) with(view View, reason string) Decision {
	d.View = view
	d.Reason = reason
	return d
}

// resolve overlays the freshly observed attributes on the persisted
// product, keeping the persisted state.
func resolve(products map[string]domain.Product, observed domain.Product) domain.Product {
	persisted, ok := products[observed.Key]
	if !ok {
		observed.State = domain.StateNone
		return observed
	}
	persisted.Overlay(observed)
	return persisted
}

func firstPending(reminders []domain.Reminder, productKey string) (domain.Reminder, bool) {
	for _, r := range reminders {
		if r.ProductKey == productKey && r.Pending() {
			return r, true
		}
	}
	return domain.Reminder{}, false
}

func markerResolved(snap store.Snapshot) bool {
	if snap.Session.Empty() {
		return false
	}
	for _, r := range snap.Reminders {
		if r.ID == snap.Session.JustCreatedReminderID {
			return true
		}
	}
	return false
}
