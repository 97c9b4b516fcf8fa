// Package cache provides the exact-match answer cache: key canonicalization,
// the Store capability implemented by the redis, sqlite and memory backends,
// and the Exact and Disabled caches consumed by the answer service.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrStoreUnavailable reports a store that cannot be reached.
var ErrStoreUnavailable = errors.New("cache store unavailable")

// Store is a key/value service with per-entry expiry.
type Store interface {
	// Get returns the value for key. A missing or expired key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key for ttl, replacing any previous value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// Sizer is implemented by stores that can count their live entries.
type Sizer interface {
	Len(ctx context.Context) (int64, error)
}

// Clearer is implemented by stores that can purge entries.
type Clearer interface {
	Clear(ctx context.Context, expiredOnly bool) error
}

// Canonicalize lower-cases q, trims it and collapses interior whitespace.
func Canonicalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// CheckStore pings the store, wrapping failures with ErrStoreUnavailable.
func CheckStore(ctx context.Context, s Store) error {
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
