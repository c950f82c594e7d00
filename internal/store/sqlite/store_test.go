package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/store"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "pause.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Get(ctx, store.KeyReminders)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Set(ctx, store.KeyReminders, []byte(`[]`), 0))
	require.NoError(t, s.Set(ctx, store.KeyReminders, []byte(`[{"id":"r1"}]`), 0))

	got, err := s.Get(ctx, store.KeyReminders)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"r1"}]`, string(got))

	require.NoError(t, s.Remove(ctx, store.KeyReminders))
	_, err = s.Get(ctx, store.KeyReminders)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Ping(ctx))
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pause.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, store.KeyGlobalClosed, []byte(`true`), 0))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	got, err := s.Get(ctx, store.KeyGlobalClosed)
	require.NoError(t, err)
	require.Equal(t, "true", string(got))
}

func TestStore_ExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	now := time.UnixMilli(1_700_000_000_000)
	s.WithClock(func() time.Time { return now })

	key := store.TabSessionKey("tab-1")
	require.NoError(t, s.Set(ctx, key, []byte(`{}`), time.Minute))
	require.NoError(t, s.Set(ctx, store.KeyProducts, []byte(`{}`), 0))

	_, err := s.Get(ctx, key)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, key)
	require.ErrorIs(t, err, domain.ErrNotFound)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.Get(ctx, store.KeyProducts)
	require.NoError(t, err)
}

func TestStore_PublishesAfterWrite(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	var seen []store.Change
	unsub := s.Subscribe(func(c store.Change) {
		// the write is visible to handlers
		_, err := s.Get(ctx, store.KeySnoozeUntil)
		require.NoError(t, err)
		seen = append(seen, c)
	})
	require.NoError(t, s.Set(ctx, store.KeySnoozeUntil, []byte(`1`), 0))
	unsub()
	require.NoError(t, s.Remove(ctx, store.KeySnoozeUntil))

	require.Len(t, seen, 1)
	require.Equal(t, []string{store.KeySnoozeUntil}, seen[0].Keys)
	require.Equal(t, store.AreaLocal, seen[0].Area)
}
