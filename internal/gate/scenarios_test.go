package gate_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/gate"
	"github.com/MrSnakeDoc/pause/internal/lifecycle"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/metrics"
	"github.com/MrSnakeDoc/pause/internal/notify"
	"github.com/MrSnakeDoc/pause/internal/sources/marketplace"
	"github.com/MrSnakeDoc/pause/internal/store"
	"github.com/MrSnakeDoc/pause/internal/store/sqlite"
)

type noTimers struct{}

func (noTimers) Arm(string, time.Time) error { return nil }
func (noTimers) Disarm(string)               {}

type engine struct {
	now       time.Time
	entities  *store.Entities
	manager   *lifecycle.Manager
	completer *lifecycle.Completer
	gate      *gate.Service
}

// interleaved runs before once, ahead of the first write to key.
type interleaved struct {
	store.Backend
	key    string
	before func()
}

func (b *interleaved) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == b.key && b.before != nil {
		before := b.before
		b.before = nil
		before()
	}
	return b.Backend.Set(ctx, key, value, ttl)
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	return newEngineOn(t, func(b store.Backend) store.Backend { return b })
}

func newEngineOn(t *testing.T, wrap func(store.Backend) store.Backend) *engine {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "pause.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	backend := wrap(db)

	e := &engine{now: time.UnixMilli(1_700_000_000_000)}
	clock := func() time.Time { return e.now }
	log := logger.NewNop()

	e.entities = store.NewEntities(backend).WithClock(clock)
	e.manager = lifecycle.NewManager(e.entities, noTimers{}, log).WithClock(clock)
	e.completer = lifecycle.NewCompleter(e.entities, notify.NewStoreSender(backend, log, ""), log)

	registry, err := marketplace.NewRegistry(marketplace.Defaults)
	require.NoError(t, err)
	e.gate = gate.NewService(e.entities, registry.WithClock(clock), log, time.Second).WithClock(clock)
	return e
}

func (e *engine) decide(t *testing.T, productID string) gate.Decision {
	t.Helper()
	d, err := e.gate.Decide(context.Background(), gate.Request{
		Marketplace: "amazon",
		ProductID:   productID,
		TabID:       "tab-1",
	})
	require.NoError(t, err)
	require.False(t, d.Stale)
	return d
}

func product(id string) domain.Product {
	return domain.Product{Marketplace: "amazon", MarketplaceProductID: id, Name: "Desk lamp"}
}

func TestScenario_SleepOnItThenComplete(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	t0 := e.now

	r, err := e.manager.SleepOnIt(ctx, product("P"), 60*time.Second, "")
	require.NoError(t, err)
	require.Equal(t, t0.UnixMilli()+60000, r.ReminderTime)

	e.now = t0.Add(100 * time.Millisecond)
	require.Equal(t, gate.ViewEarlyReturn, e.decide(t, "P").View)

	e.now = t0.Add(60 * time.Second)
	done, err := e.completer.Complete(ctx, r.ID, metrics.SourceTimer)
	require.NoError(t, err)
	require.True(t, done)

	p, _, err := e.entities.Product(ctx, "amazon-P")
	require.NoError(t, err)
	require.Equal(t, domain.StateDontNeedIt, p.State)
	got, _, err := e.entities.Reminder(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReminderCompleted, got.Status)

	e.now = t0.Add(60*time.Second + time.Millisecond)
	require.Equal(t, gate.ViewHidden, e.decide(t, "P").View)
}

func TestScenario_MarkerSurvivesReadBeforeReminderIsStored(t *testing.T) {
	ctx := context.Background()
	gap := &interleaved{key: store.KeyReminders}
	e := newEngineOn(t, func(b store.Backend) store.Backend {
		gap.Backend = b
		return gap
	})

	var early gate.Decision
	gap.before = func() { early = e.decide(t, "P") }

	_, err := e.manager.SleepOnIt(ctx, product("P"), time.Hour, "tab-1")
	require.NoError(t, err)
	require.Equal(t, gate.ViewProduct, early.View)
	require.Equal(t, gate.ReasonNoReminder, early.Reason)

	d := e.decide(t, "P")
	require.Equal(t, gate.ViewProduct, d.View)
	require.Equal(t, gate.ReasonJustCreated, d.Reason)

	require.Equal(t, gate.ViewEarlyReturn, e.decide(t, "P").View)
}

func TestScenario_OldFlameWhenTimerWasLost(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	t0 := e.now

	_, err := e.manager.SleepOnIt(ctx, product("P"), time.Minute, "")
	require.NoError(t, err)

	e.now = t0.Add(2 * time.Minute)
	require.Equal(t, gate.ViewOldFlame, e.decide(t, "P").View)
}

func TestScenario_NeedItRemovesReminder(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	r, err := e.manager.SleepOnIt(ctx, product("XYZ"), time.Hour, "")
	require.NoError(t, err)

	_, err = e.manager.NeedIt(ctx, "amazon-XYZ", r.ID)
	require.NoError(t, err)

	reminders, err := e.entities.Reminders(ctx)
	require.NoError(t, err)
	require.Empty(t, reminders)

	p, _, err := e.entities.Product(ctx, "amazon-XYZ")
	require.NoError(t, err)
	require.Equal(t, domain.StateINeedThis, p.State)

	require.Equal(t, gate.ViewHidden, e.decide(t, "XYZ").View)

	// hidden until the user changes their mind
	_, err = e.manager.ChangedMyMind(ctx, "amazon-XYZ", "")
	require.NoError(t, err)
	require.Equal(t, gate.ViewProduct, e.decide(t, "XYZ").View)
}

func TestScenario_GlobalCloseHidesEverything(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.manager.SleepOnIt(ctx, product("A"), time.Hour, "")
	require.NoError(t, err)
	require.NoError(t, e.entities.SetGlobalClosed(ctx, true))

	for _, id := range []string{"A", "NEVERSEEN"} {
		require.Equal(t, gate.ViewHidden, e.decide(t, id).View, id)
	}

	require.NoError(t, e.entities.SetGlobalClosed(ctx, false))
	require.Equal(t, gate.ViewEarlyReturn, e.decide(t, "A").View)
	require.Equal(t, gate.ViewProduct, e.decide(t, "NEVERSEEN").View)
}

func TestScenario_ExpiredSnoozeIsLikeNoSnooze(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	t0 := e.now

	require.NoError(t, e.entities.SetSnoozeUntil(ctx, t0.Add(time.Hour)))
	require.Equal(t, gate.ViewHidden, e.decide(t, "A").View)

	e.now = t0.Add(time.Hour)
	require.Equal(t, gate.ViewProduct, e.decide(t, "A").View)

	until, err := e.entities.SnoozeUntil(ctx)
	require.NoError(t, err)
	require.Nil(t, until)
}

func TestScenario_OwnTabSeesConfirmationOnce(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.manager.SleepOnIt(ctx, product("A"), time.Hour, "tab-1")
	require.NoError(t, err)

	d := e.decide(t, "A")
	require.Equal(t, gate.ViewProduct, d.View)
	require.Nil(t, d.Reminder)
	require.Equal(t, domain.StateSleepingOnIt, d.Product.State)

	require.Equal(t, gate.ViewEarlyReturn, e.decide(t, "A").View)
}

func TestScenario_DuplicatePendingRemindersFirstWins(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	t0 := e.now

	// two tabs sleeping on the same product: both reminders are kept
	first, err := e.manager.SleepOnIt(ctx, product("P"), time.Hour, "")
	require.NoError(t, err)
	second, err := e.manager.SleepOnIt(ctx, product("P"), time.Minute, "")
	require.NoError(t, err)

	pending, err := e.entities.PendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	e.now = t0.Add(2 * time.Minute)
	d := e.decide(t, "P")
	require.Equal(t, gate.ViewEarlyReturn, d.View)
	require.Equal(t, first.ID, d.Reminder.ID)

	// completing either one ends the prompt for the product
	_, err = e.completer.Complete(ctx, second.ID, metrics.SourceSweep)
	require.NoError(t, err)
	require.Equal(t, gate.ViewHidden, e.decide(t, "P").View)
}
