package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/rs/zerolog"

	"github.com/pario-ai/ragcache/pkg/models"
)

// Options configures an Exact cache.
type Options struct {
	// Name identifies the store in stats and logs.
	Name string
	// Prefix namespaces every key written to the store.
	Prefix string
	// TTL is applied when Put is called without one.
	TTL time.Duration
	// OpTimeout bounds every store call.
	OpTimeout time.Duration
	// BreakerThreshold consecutive failures open the circuit for BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// lookup is the value carried through the circuit breaker.
type lookup struct {
	value string
	found bool
}

// Exact is an exact-match cache over a Store. It never returns errors:
// a failing store reads as absent and swallows writes, and after
// BreakerThreshold consecutive failures it is not called at all until the
// cool-down elapses.
type Exact struct {
	store   Store
	opts    Options
	breaker circuitbreaker.CircuitBreaker[lookup]
	log     zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewExact wraps store.
func NewExact(store Store, opts Options, log zerolog.Logger) *Exact {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}
	threshold := opts.BreakerThreshold
	if threshold <= 0 {
		threshold = 3
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 5 * time.Second
	}

	return &Exact{
		store: store,
		opts:  opts,
		breaker: circuitbreaker.New[lookup](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    opts.BreakerCooldown,
			Timeout:     opts.BreakerCooldown,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- positive, checked above
			},
		}),
		log: log.With().Str("component", "cache").Str("store", opts.Name).Logger(),
	}
}

func (c *Exact) storeKey(key string) string {
	return c.opts.Prefix + key
}

// Get returns the cached answer for key, or false when it is absent, expired
// or the store cannot be reached.
func (c *Exact) Get(ctx context.Context, key string) (string, bool) {
	res, err := c.breaker.Execute(ctx, func(ctx context.Context) (lookup, error) {
		ctx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
		defer cancel()
		v, ok, err := c.store.Get(ctx, c.storeKey(key))
		return lookup{value: v, found: ok}, err
	})
	if err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return "", false
	}
	if !res.found {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return res.value, true
}

// Put stores value under key for ttl; ttl <= 0 selects the default TTL.
func (c *Exact) Put(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.TTL
	}
	_, err := c.breaker.Execute(ctx, func(ctx context.Context) (lookup, error) {
		ctx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
		defer cancel()
		return lookup{}, c.store.Set(ctx, c.storeKey(key), value, ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed, answer not cached")
	}
}

// Name is the configured store name.
func (c *Exact) Name() string { return c.opts.Name }

// Enabled reports true; Disabled reports false.
func (c *Exact) Enabled() bool { return true }

// Stats returns counters and, when the store can count, its entry total.
func (c *Exact) Stats(ctx context.Context) models.CacheStats {
	stats := models.CacheStats{
		Backend: c.opts.Name,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Entries: -1,
	}
	if s, ok := c.store.(Sizer); ok {
		ctx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
		defer cancel()
		if n, err := s.Len(ctx); err == nil {
			stats.Entries = n
		}
	}
	return stats
}

const disabledName = "disabled"

// Disabled is the control-run cache: every Get misses and Put does nothing.
type Disabled struct{}

// Get always misses.
func (Disabled) Get(context.Context, string) (string, bool) { return "", false }

// Put is a no-op.
func (Disabled) Put(context.Context, string, string, time.Duration) {}

// Enabled reports false.
func (Disabled) Enabled() bool { return false }

// Name reports "disabled".
func (Disabled) Name() string { return disabledName }

// Stats reports an empty disabled cache.
func (Disabled) Stats(context.Context) models.CacheStats {
	return models.CacheStats{Backend: disabledName, Entries: -1}
}
