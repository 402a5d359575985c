package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the snapshot under a single key. A zero ttl never expires.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (r *RedisStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *RedisStore) Save(ctx context.Context, snap domain.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
