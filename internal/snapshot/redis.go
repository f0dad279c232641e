package snapshot

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/sadopc/pomodash/internal/errors"
)

// RedisSlot keeps the snapshot in a Redis string so several machines share
// one timer. Last write wins.
type RedisSlot struct {
	client *redis.Client
	key    string
}

// NewRedisSlot connects to addr. An empty key means Key.
func NewRedisSlot(addr, password string, db int, key string) *RedisSlot {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisSlotWithClient(client, key)
}

func NewRedisSlotWithClient(client *redis.Client, key string) *RedisSlot {
	if key == "" {
		key = Key
	}
	return &RedisSlot{client: client, key: key}
}

func (r *RedisSlot) Read(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return data, nil
}

func (r *RedisSlot) Write(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisSlot) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisSlot) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSlot) Close() error {
	return r.client.Close()
}
