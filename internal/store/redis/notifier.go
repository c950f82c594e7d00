package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/store"
)

// Notifier holds one subscription on ChangesChannel per process and fans
// the changes out to local handlers. Writers in this process receive their
// own changes too.
type Notifier struct {
	client *redis.Client
	hub    *store.Hub
	logger logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewNotifier creates a notifier; call Start before relying on delivery
func NewNotifier(client *redis.Client, log logger.Logger) *Notifier {
	return &Notifier{
		client: client,
		hub:    store.NewHub(),
		logger: log,
	}
}

// Start subscribes and begins delivering changes until ctx is done or
// Close is called. It returns once the subscription is confirmed.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pubsub != nil {
		return nil
	}

	pubsub := n.client.Subscribe(ctx, ChangesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", ChangesChannel, err)
	}

	n.pubsub = pubsub
	n.done = make(chan struct{})
	go n.loop(ctx, pubsub.Channel(), n.done)

	n.logger.Info("change notifier subscribed",
		logger.String("channel", ChangesChannel))
	return nil
}

func (n *Notifier) loop(ctx context.Context, ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var change store.Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				n.logger.Warn("dropping malformed change event",
					logger.String("payload", msg.Payload),
					logger.Error(err))
				continue
			}
			n.hub.Publish(change)
		case <-ctx.Done():
			return
		}
	}
}

// Subscribe registers a handler for every local-area change
func (n *Notifier) Subscribe(handler func(store.Change)) func() {
	return n.hub.Subscribe(handler)
}

// Close ends the subscription and waits for the delivery loop to exit
func (n *Notifier) Close() error {
	n.mu.Lock()
	pubsub, done := n.pubsub, n.done
	n.pubsub = nil
	n.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
