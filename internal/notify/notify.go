// Package notify delivers user-visible notifications. Pending notifications
// live in the Entity Store, so every open context learns about them through
// the change notifier; clicking one clears it.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/store"
)

// DefaultTTL is how long an unclicked notification is kept.
const DefaultTTL = 7 * 24 * time.Hour

type Notification struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Icon       string `json:"icon,omitempty"`
	ProductKey string `json:"productKey,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
}

// Sender creates and clears notifications.
type Sender interface {
	Create(ctx context.Context, n Notification) (string, error)
	Clear(ctx context.Context, id string) error
}

// StoreSender persists notifications through a store backend.
type StoreSender struct {
	backend store.Backend
	logger  logger.Logger
	ttl     time.Duration
	icon    string
	now     func() time.Time
}

func NewStoreSender(backend store.Backend, log logger.Logger, icon string) *StoreSender {
	return &StoreSender{
		backend: backend,
		logger:  log,
		ttl:     DefaultTTL,
		icon:    icon,
		now:     time.Now,
	}
}

// WithTTL overrides DefaultTTL.
func (s *StoreSender) WithTTL(ttl time.Duration) *StoreSender {
	s.ttl = ttl
	return s
}

// Create stores n, filling in the id, default icon and creation time.
func (s *StoreSender) Create(ctx context.Context, n Notification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Icon == "" {
		n.Icon = s.icon
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = s.now().UnixMilli()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := s.backend.Set(ctx, store.NotificationKey(n.ID), data, s.ttl); err != nil {
		return "", err
	}

	s.logger.Info("notification created",
		logger.String("notification_id", n.ID),
		logger.ProductKey(n.ProductKey),
		logger.String("title", n.Title),
		logger.String("body", n.Body))
	return n.ID, nil
}

// Get returns a pending notification.
func (s *StoreSender) Get(ctx context.Context, id string) (Notification, error) {
	var n Notification
	data, err := s.backend.Get(ctx, store.NotificationKey(id))
	if err != nil {
		return n, err
	}
	if err := json.Unmarshal(data, &n); err != nil {
		return n, fmt.Errorf("failed to decode notification %s: %w", id, err)
	}
	return n, nil
}

// Clear removes a notification. Clearing an unknown id is not an error.
func (s *StoreSender) Clear(ctx context.Context, id string) error {
	err := s.backend.Remove(ctx, store.NotificationKey(id))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	s.logger.Debug("notification cleared", logger.String("notification_id", id))
	return nil
}
