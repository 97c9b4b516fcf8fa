// Package backend simulates the slow retrieval-augmented generation call
// that the answer cache sits in front of.
package backend

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pario-ai/ragcache/pkg/models"
)

// Simulated answers after base + uniform[0, jitter] of artificial delay.
type Simulated struct {
	base   time.Duration
	jitter time.Duration
	kb     *KnowledgeBase

	mu  sync.Mutex
	rng *rand.Rand

	calls atomic.Int64
}

// Option configures a Simulated backend.
type Option func(*Simulated)

// WithKnowledgeBase answers from kb instead of echoing the question.
func WithKnowledgeBase(kb *KnowledgeBase) Option {
	return func(s *Simulated) {
		s.kb = kb
	}
}

// WithSource replaces the jitter random source.
func WithSource(src rand.Source) Option {
	return func(s *Simulated) {
		s.rng = rand.New(src)
	}
}

// NewSimulated creates a backend with the given delay profile. A zero seed
// draws a random one.
func NewSimulated(base, jitter time.Duration, seed uint64, opts ...Option) *Simulated {
	if seed == 0 {
		seed = rand.Uint64()
	}
	s := &Simulated{
		base:   base,
		jitter: jitter,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Delay draws the next artificial latency.
func (s *Simulated) Delay() time.Duration {
	if s.jitter <= 0 {
		return s.base
	}
	s.mu.Lock()
	j := s.rng.Int64N(int64(s.jitter) + 1)
	s.mu.Unlock()
	return s.base + time.Duration(j)
}

// Compute blocks for the simulated delay and returns an answer. The only
// failure is cancellation of ctx.
func (s *Simulated) Compute(ctx context.Context, question string) (models.Answer, error) {
	s.calls.Add(1)

	timer := time.NewTimer(s.Delay())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return models.Answer{}, ctx.Err()
	case <-timer.C:
	}

	if s.kb == nil || s.kb.Len() == 0 {
		return models.Answer{Text: "Simulated answer to: " + question, Match: models.MatchNone}, nil
	}
	return s.kb.Find(question), nil
}

// Calls returns how many times Compute has been invoked.
func (s *Simulated) Calls() int64 {
	return s.calls.Load()
}
