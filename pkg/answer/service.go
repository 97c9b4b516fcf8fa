// Package answer implements the cached question answering service.
package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/pario-ai/ragcache/pkg/cache"
	"github.com/pario-ai/ragcache/pkg/models"
)

// ErrEmptyQuestion is returned for questions that canonicalize to nothing.
var ErrEmptyQuestion = errors.New("empty question")

// ErrBackend wraps failures of the answer backend. They are never treated as
// cache misses and never cached.
var ErrBackend = errors.New("backend failed")

// Cache is the exact-match cache capability. cache.Exact and cache.Disabled
// implement it.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, value string, ttl time.Duration)
}

// Backend computes answers for cache misses.
type Backend interface {
	Compute(ctx context.Context, question string) (models.Answer, error)
}

// Options tunes a Service.
type Options struct {
	// TTL is passed to Cache.Put; zero means the cache default.
	TTL time.Duration
	// SingleFlight collapses concurrent misses for the same key into one
	// backend call.
	SingleFlight bool
}

// Service answers questions from the cache, falling back to the backend.
type Service struct {
	cache   Cache
	backend Backend
	opts    Options
	flight  *singleflight.Group
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a Service.
func New(c Cache, b Backend, opts Options, log zerolog.Logger) *Service {
	s := &Service{
		cache:   c,
		backend: b,
		opts:    opts,
		log:     log.With().Str("component", "answer").Logger(),
		now:     time.Now,
	}
	if opts.SingleFlight {
		s.flight = &singleflight.Group{}
	}
	return s
}

// Answer resolves question. A hit never touches the backend; a miss calls it
// and writes the result to the cache before returning.
func (s *Service) Answer(ctx context.Context, question string) (models.AskResult, error) {
	start := s.now()
	key := cache.Canonicalize(question)
	if key == "" {
		return models.AskResult{}, ErrEmptyQuestion
	}

	res := models.AskResult{Question: question, Key: key}

	if text, ok := s.cache.Get(ctx, key); ok {
		res.Answer = models.Answer{Text: text, Match: models.MatchCache}
		res.Outcome = models.OutcomeHit
		res.Latency = s.now().Sub(start)
		s.log.Debug().Str("key", key).Dur("latency", res.Latency).Msg("cache hit")
		return res, nil
	}

	ans, err := s.computeAndStore(ctx, key, question)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("backend failed")
		return models.AskResult{}, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	res.Answer = ans
	res.Outcome = models.OutcomeMiss
	res.Latency = s.now().Sub(start)
	s.log.Debug().Str("key", key).Dur("latency", res.Latency).Str("match", ans.Match).Msg("cache miss")
	return res, nil
}

func (s *Service) computeAndStore(ctx context.Context, key, question string) (models.Answer, error) {
	compute := func(ctx context.Context) (models.Answer, error) {
		ans, err := s.backend.Compute(ctx, question)
		if err != nil {
			return models.Answer{}, err
		}
		s.cache.Put(ctx, key, ans.Text, s.opts.TTL)
		return ans, nil
	}

	if s.flight == nil {
		return compute(ctx)
	}

	// The shared call must not die with whichever caller started it.
	v, err, _ := s.flight.Do(key, func() (any, error) {
		return compute(context.WithoutCancel(ctx))
	})
	if err != nil {
		return models.Answer{}, err
	}
	return v.(models.Answer), nil
}
