// Package store defines the Entity Store contract shared by every backend,
// the change notification types, and the typed repository used by the
// engine.
//
// There is no locking: every read-modify-write on a logical collection is
// last-writer-wins at the granularity of the stored blob.
package store

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Logical collection names. Each one is a single store entry.
const (
	KeyProducts     = "products"
	KeyReminders    = "reminders"
	KeySnoozeUntil  = "snoozeUntil"
	KeyGlobalClosed = "globalPluginClosed"

	KeyPrefixTabSession   = "tabSession:"
	KeyPrefixNotification = "notification:"
)

// TabSessionKey returns the key holding the ephemeral state of a tab.
func TabSessionKey(tabID string) string {
	return KeyPrefixTabSession + tabID
}

// NotificationKey returns the key holding a pending user notification.
func NotificationKey(id string) string {
	return KeyPrefixNotification + id
}

// Backend is the durable key-value substrate.
//
// Get returns domain.ErrNotFound when the key is absent. Any failure to
// reach the substrate wraps domain.ErrStoreUnavailable.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Area scopes a change to a storage area. Only AreaLocal is relevant to the
// engine; other areas are filtered out before handlers see them.
type Area string

const (
	AreaLocal Area = "local"
	AreaSync  Area = "sync"
)

// Change is delivered to subscribers whenever one or more keys change.
// Handlers must treat it as a hint and re-read the store.
type Change struct {
	Keys []string `json:"keys"`
	Area Area     `json:"area"`
}

// Touches reports whether the change concerns any of the given keys.
// A key ending in ':' matches every key sharing that prefix.
func (c Change) Touches(keys ...string) bool {
	for _, want := range keys {
		if strings.HasSuffix(want, ":") {
			if slices.ContainsFunc(c.Keys, func(k string) bool { return strings.HasPrefix(k, want) }) {
				return true
			}
			continue
		}
		if slices.Contains(c.Keys, want) {
			return true
		}
	}
	return false
}

// Notifier delivers changes to every subscribed handler, including those
// living in the process that made the write.
type Notifier interface {
	Subscribe(handler func(Change)) (unsubscribe func())
}
