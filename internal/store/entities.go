package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrSnakeDoc/pause/internal/domain"
)

// Entities is the typed repository over a Backend.
//
// Reads that fail return the zero value together with the error so callers
// can fall back to defaults. Read-modify-write helpers are not atomic: two
// writers racing on the same collection can lose one update.
type Entities struct {
	backend    Backend
	now        func() time.Time
	sessionTTL time.Duration
}

// NewEntities creates a repository over b.
func NewEntities(b Backend) *Entities {
	return &Entities{
		backend:    b,
		now:        time.Now,
		sessionTTL: DefaultTabSessionTTL,
	}
}

// DefaultTabSessionTTL bounds how long an unconsumed tab marker lives.
const DefaultTabSessionTTL = 24 * time.Hour

// WithClock overrides the time source (tests).
func (e *Entities) WithClock(now func() time.Time) *Entities {
	e.now = now
	return e
}

// WithTabSessionTTL overrides DefaultTabSessionTTL.
func (e *Entities) WithTabSessionTTL(ttl time.Duration) *Entities {
	e.sessionTTL = ttl
	return e
}

// Backend returns the underlying substrate.
func (e *Entities) Backend() Backend {
	return e.backend
}

func getJSON[T any](ctx context.Context, b Backend, key string) (T, bool, error) {
	var v T
	data, err := b.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return v, false, nil
		}
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return v, true, nil
}

func (e *Entities) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return e.backend.Set(ctx, key, data, ttl)
}

// ─────────────────────────────────────────────────────────────────
// Products
// ─────────────────────────────────────────────────────────────────

// Products returns every known product keyed by product key.
func (e *Entities) Products(ctx context.Context) (map[string]domain.Product, error) {
	products, _, err := getJSON[map[string]domain.Product](ctx, e.backend, KeyProducts)
	if products == nil {
		products = make(map[string]domain.Product)
	}
	return products, err
}

// Product looks up one product.
func (e *Entities) Product(ctx context.Context, key string) (domain.Product, bool, error) {
	products, err := e.Products(ctx)
	if err != nil {
		return domain.Product{}, false, err
	}
	p, ok := products[key]
	return p, ok, nil
}

// UpsertProduct applies mutate to the stored product (or to a fresh one
// carrying only key when absent) and writes the whole collection back.
func (e *Entities) UpsertProduct(ctx context.Context, key string, mutate func(p *domain.Product, exists bool)) (domain.Product, error) {
	products, err := e.Products(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	p, exists := products[key]
	if !exists {
		p = domain.Product{Key: key}
		if m, id, ok := domain.SplitProductKey(key); ok {
			p.Marketplace, p.MarketplaceProductID = m, id
		}
	}
	mutate(&p, exists)
	products[key] = p

	if err := e.putJSON(ctx, KeyProducts, products, 0); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// UpdateProduct is UpsertProduct for existing products only. It reports
// false without writing when the product is absent.
func (e *Entities) UpdateProduct(ctx context.Context, key string, mutate func(p *domain.Product)) (domain.Product, bool, error) {
	products, err := e.Products(ctx)
	if err != nil {
		return domain.Product{}, false, err
	}

	p, exists := products[key]
	if !exists {
		return domain.Product{}, false, nil
	}
	mutate(&p)
	products[key] = p

	if err := e.putJSON(ctx, KeyProducts, products, 0); err != nil {
		return domain.Product{}, false, err
	}
	return p, true, nil
}

// ProductList returns products sorted by capture time, newest first.
func (e *Entities) ProductList(ctx context.Context) ([]domain.Product, error) {
	products, err := e.Products(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]domain.Product, 0, len(products))
	for _, p := range products {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CapturedAt != list[j].CapturedAt {
			return list[i].CapturedAt > list[j].CapturedAt
		}
		return list[i].Key < list[j].Key
	})
	return list, nil
}

// ─────────────────────────────────────────────────────────────────
// Reminders
// ─────────────────────────────────────────────────────────────────

// Reminders returns the reminder list in insertion order.
func (e *Entities) Reminders(ctx context.Context) ([]domain.Reminder, error) {
	reminders, _, err := getJSON[[]domain.Reminder](ctx, e.backend, KeyReminders)
	return reminders, err
}

// Reminder looks up one reminder by id.
func (e *Entities) Reminder(ctx context.Context, id string) (domain.Reminder, bool, error) {
	reminders, err := e.Reminders(ctx)
	if err != nil {
		return domain.Reminder{}, false, err
	}
	for _, r := range reminders {
		if r.ID == id {
			return r, true, nil
		}
	}
	return domain.Reminder{}, false, nil
}

// PendingReminders returns every pending reminder.
func (e *Entities) PendingReminders(ctx context.Context) ([]domain.Reminder, error) {
	reminders, err := e.Reminders(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]domain.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.Pending() {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// AppendReminder adds r to the end of the list. Duplicate pending
// reminders for one product are not prevented.
func (e *Entities) AppendReminder(ctx context.Context, r domain.Reminder) error {
	reminders, err := e.Reminders(ctx)
	if err != nil {
		return err
	}
	reminders = append(reminders, r)
	return e.putJSON(ctx, KeyReminders, reminders, 0)
}

// UpdateReminder applies mutate to the reminder with the given id.
// It reports false without writing when no such reminder exists, and skips
// the write when mutate changed nothing.
func (e *Entities) UpdateReminder(ctx context.Context, id string, mutate func(r *domain.Reminder)) (domain.Reminder, bool, error) {
	reminders, err := e.Reminders(ctx)
	if err != nil {
		return domain.Reminder{}, false, err
	}
	for i := range reminders {
		if reminders[i].ID != id {
			continue
		}
		before := reminders[i]
		mutate(&reminders[i])
		if reminders[i] == before {
			return before, true, nil
		}
		if err := e.putJSON(ctx, KeyReminders, reminders, 0); err != nil {
			return domain.Reminder{}, false, err
		}
		return reminders[i], true, nil
	}
	return domain.Reminder{}, false, nil
}

// DeleteReminder removes a reminder by id. A missing id is not an error.
func (e *Entities) DeleteReminder(ctx context.Context, id string) (bool, error) {
	reminders, err := e.Reminders(ctx)
	if err != nil {
		return false, err
	}
	kept := reminders[:0]
	found := false
	for _, r := range reminders {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return false, nil
	}
	return true, e.putJSON(ctx, KeyReminders, kept, 0)
}

// ─────────────────────────────────────────────────────────────────
// Global pause state
// ─────────────────────────────────────────────────────────────────

// SnoozeUntil returns the active snooze deadline, or nil. An expired value
// is treated as absent and cleared on the way out.
func (e *Entities) SnoozeUntil(ctx context.Context) (*int64, error) {
	until, ok, err := getJSON[*int64](ctx, e.backend, KeySnoozeUntil)
	if err != nil || !ok || until == nil {
		return nil, err
	}
	if domain.SnoozeExpired(until, e.now()) {
		if err := e.ClearSnooze(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return until, nil
}

// SetSnoozeUntil suppresses all prompts until t.
func (e *Entities) SetSnoozeUntil(ctx context.Context, t time.Time) error {
	until := t.UnixMilli()
	return e.putJSON(ctx, KeySnoozeUntil, &until, 0)
}

// ClearSnooze removes the snooze flag.
func (e *Entities) ClearSnooze(ctx context.Context) error {
	return e.backend.Remove(ctx, KeySnoozeUntil)
}

// GlobalClosed reports whether prompts are switched off device-wide.
func (e *Entities) GlobalClosed(ctx context.Context) (bool, error) {
	closed, _, err := getJSON[bool](ctx, e.backend, KeyGlobalClosed)
	return closed, err
}

// SetGlobalClosed switches prompts off (true) or back on (false).
func (e *Entities) SetGlobalClosed(ctx context.Context, closed bool) error {
	return e.putJSON(ctx, KeyGlobalClosed, closed, 0)
}

// GlobalPause returns both flags, with the lazy snooze clear applied.
func (e *Entities) GlobalPause(ctx context.Context) (domain.GlobalPause, error) {
	until, err := e.SnoozeUntil(ctx)
	if err != nil {
		return domain.GlobalPause{}, err
	}
	closed, err := e.GlobalClosed(ctx)
	if err != nil {
		return domain.GlobalPause{}, err
	}
	return domain.GlobalPause{SnoozeUntil: until, GlobalPluginClosed: closed}, nil
}

// ─────────────────────────────────────────────────────────────────
// Tab sessions
// ─────────────────────────────────────────────────────────────────

// TabSession returns the ephemeral state of a tab (empty when none).
func (e *Entities) TabSession(ctx context.Context, tabID string) (domain.TabSession, error) {
	if tabID == "" {
		return domain.TabSession{}, nil
	}
	s, _, err := getJSON[domain.TabSession](ctx, e.backend, TabSessionKey(tabID))
	return s, err
}

// SetTabSession stores the ephemeral state of a tab.
func (e *Entities) SetTabSession(ctx context.Context, tabID string, s domain.TabSession) error {
	if tabID == "" {
		return nil
	}
	return e.putJSON(ctx, TabSessionKey(tabID), s, e.sessionTTL)
}

// ClearTabSession drops the ephemeral state of a tab.
func (e *Entities) ClearTabSession(ctx context.Context, tabID string) error {
	if tabID == "" {
		return nil
	}
	return e.backend.Remove(ctx, TabSessionKey(tabID))
}

// ─────────────────────────────────────────────────────────────────
// Snapshot
// ─────────────────────────────────────────────────────────────────

// Snapshot is everything one decision pass needs, read in one go.
// SnoozeUntil is the raw stored value; expiry is judged by the reader.
type Snapshot struct {
	Products     map[string]domain.Product
	Reminders    []domain.Reminder
	SnoozeUntil  *int64
	GlobalClosed bool
	Session      domain.TabSession
}

// Snapshot reads a fresh view of the store for tabID.
func (e *Entities) Snapshot(ctx context.Context, tabID string) (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.SnoozeUntil, _, err = getJSON[*int64](ctx, e.backend, KeySnoozeUntil); err != nil {
		return Snapshot{}, err
	}
	if snap.GlobalClosed, err = e.GlobalClosed(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Products, err = e.Products(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Reminders, err = e.Reminders(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Session, err = e.TabSession(ctx, tabID); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
