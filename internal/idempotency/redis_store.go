package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "cardpay:idempotency:"

// RedisStore shares cached responses between instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis instance at url (redis://host:port/db).
func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("idempotency: redis backend requires redis_url")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("idempotency: parse redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts)), nil
}

// NewRedisStoreWithClient wraps an existing client. Close closes it.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Response, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency: redis get: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("idempotency: decode cached response: %w", err)
	}
	return &resp, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, response *Response, ttl time.Duration) error {
	raw, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("idempotency: encode response: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency: redis del: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
