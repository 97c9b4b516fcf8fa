// Package memory provides an in-process Store for tests and in-process benchmarks.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pario-ai/ragcache/pkg/models"
)

// Store is a map-backed store with lazy expiry.
type Store struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]models.CacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key while it is live.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !e.Live(s.now()) {
		return "", false, nil
	}
	return e.Value, true, nil
}

// Set stores value under key until now+ttl.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := models.CacheEntry{Key: key, Value: value, ExpiresAt: s.now().Add(ttl)}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Len counts live entries.
func (s *Store) Len(ctx context.Context) (int64, error) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.entries {
		if e.Live(now) {
			n++
		}
	}
	return n, nil
}

// Clear removes all entries, or only expired ones.
func (s *Store) Clear(ctx context.Context, expiredOnly bool) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !expiredOnly {
		clear(s.entries)
		return nil
	}
	for k, e := range s.entries {
		if !e.Live(now) {
			delete(s.entries, k)
		}
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
