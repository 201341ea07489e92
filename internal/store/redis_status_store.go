package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"karriere-harvester/internal/models"
)

// Default key prefixes.
const (
	StatusKeyPrefix = "karriere:status:"
	DedupeKeyPrefix = "karriere:request:"
)

// redisKV is the subset of the Redis client the stores use.
type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisStatusStore stores run status in Redis.
type RedisStatusStore struct {
	client redisKV
	closer func() error
	prefix string
	ttl    time.Duration
}

// NewRedisStatusStore initializes a Redis-backed StatusStore.
func NewRedisStatusStore(addr, prefix string, ttl time.Duration) *RedisStatusStore {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStatusStore{client: client, closer: client.Close, prefix: prefix, ttl: ttl}
}

// NewRedisStatusStoreWithClient uses an existing client (tests, shared pools).
func NewRedisStatusStoreWithClient(client redisKV, prefix string, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{client: client, prefix: prefix, ttl: ttl}
}

// Close closes the Redis client.
func (s *RedisStatusStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// SetStatus writes the status record to Redis.
func (s *RedisStatusStore) SetStatus(ctx context.Context, status models.RunStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+status.RunID, payload, s.ttl).Err()
}

// GetStatus reads the status record from Redis.
func (s *RedisStatusStore) GetStatus(ctx context.Context, runID string) (models.RunStatus, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+runID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.RunStatus{}, false, nil
		}
		return models.RunStatus{}, false, err
	}

	var status models.RunStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return models.RunStatus{}, false, err
	}
	return status, true, nil
}

// RedisDeduper claims keys with SETNX.
type RedisDeduper struct {
	client redisKV
	closer func() error
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper connects to addr.
func NewRedisDeduper(addr, prefix string, ttl time.Duration) *RedisDeduper {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisDeduper{client: client, closer: client.Close, prefix: prefix, ttl: ttl}
}

// NewRedisDeduperWithClient uses an existing client.
func NewRedisDeduperWithClient(client redisKV, prefix string, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+key, "1", d.ttl).Result()
}

// Close closes the Redis client.
func (d *RedisDeduper) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}
