package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/store"
)

// Store is the Redis-backed Entity Store. Every write also publishes a
// store.Change on ChangesChannel so all processes can re-evaluate.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Get retrieves the raw value of a logical key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
		}
		return nil, unavailable("get", key, err)
	}
	return data, nil
}

// Set stores the raw value of a logical key and announces the change
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	payload, err := changePayload(key)
	if err != nil {
		return err
	}

	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, Key(key), value, ttl)
		pipe.Publish(ctx, ChangesChannel, payload)
		return nil
	})
	if err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Remove deletes a logical key and announces the change
func (s *Store) Remove(ctx context.Context, key string) error {
	payload, err := changePayload(key)
	if err != nil {
		return err
	}

	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, Key(key))
		pipe.Publish(ctx, ChangesChannel, payload)
		return nil
	})
	if err != nil {
		return unavailable("remove", key, err)
	}
	return nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

// Close is a no-op: the client is owned by the app, which closes it last.
func (s *Store) Close() error {
	return nil
}

func changePayload(key string) ([]byte, error) {
	data, err := json.Marshal(store.Change{Keys: []string{key}, Area: store.AreaLocal})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change: %w", err)
	}
	return data, nil
}

func unavailable(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("redis %s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("redis %s %s: %w: %w", op, key, domain.ErrStoreUnavailable, err)
}
