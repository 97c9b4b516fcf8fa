// Package redis provides the Redis-backed answer store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps answers in Redis with native key expiry, so entries survive
// process restarts and can be inspected with redis-cli.
type Store struct {
	client *redis.Client
	// match is the SCAN pattern covering this store's keys.
	match string
}

// New connects to the Redis server described by url
// (redis://[user:password@]host:port/db). keyPattern limits Len and Clear to
// the cache's own keys, e.g. "qa:*".
func New(url, keyPattern string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewFromClient(redis.NewClient(opts), keyPattern), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, keyPattern string) *Store {
	if keyPattern == "" {
		keyPattern = "*"
	}
	return &Store{client: client, match: keyPattern}
}

// Get returns the value for key. redis.Nil is a miss, not an error.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Set stores value with a TTL (SET key value PX ttl).
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Len counts keys matching the store pattern.
func (s *Store) Len(ctx context.Context) (int64, error) {
	var n int64
	iter := s.client.Scan(ctx, 0, s.match, 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

// Clear deletes keys matching the store pattern. Redis purges expired keys
// itself, so expiredOnly has nothing left to remove.
func (s *Store) Clear(ctx context.Context, expiredOnly bool) error {
	if expiredOnly {
		return nil
	}

	iter := s.client.Scan(ctx, 0, s.match, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
