package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/ragcache/pkg/answer"
	"github.com/pario-ai/ragcache/pkg/backend"
	"github.com/pario-ai/ragcache/pkg/cache"
	"github.com/pario-ai/ragcache/pkg/cache/memory"
	redisstore "github.com/pario-ai/ragcache/pkg/cache/redis"
	sqlitestore "github.com/pario-ai/ragcache/pkg/cache/sqlite"
	"github.com/pario-ai/ragcache/pkg/config"
	"github.com/pario-ai/ragcache/pkg/logging"
	"github.com/pario-ai/ragcache/pkg/models"
)

const checkTimeout = 2 * time.Second

// answerCache is what the service, the HTTP endpoint and the MCP tools need
// from the cache. cache.Exact and cache.Disabled implement it.
type answerCache interface {
	answer.Cache
	Stats(ctx context.Context) models.CacheStats
	Enabled() bool
	Name() string
}

// loadConfig reads the config file, overlays the environment and validates.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Log, os.Stderr)
}

// openStore builds the configured store without contacting it.
func openStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Store {
	case config.BackendRedis:
		return redisstore.New(cfg.URL, cfg.Prefix+"*")
	case config.BackendSQLite:
		return sqlitestore.New(cfg.DBPath)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache store %q", config.ErrInvalid, cfg.Store)
	}
}

// stack is the wired answer path shared by serve, bench --in-process and mcp.
type stack struct {
	store   cache.Store
	cache   answerCache
	backend *backend.Simulated
	service *answer.Service
}

// buildStack wires store, cache, backend and service. An unreachable store is
// fatal only with cache.require_store; otherwise the cache degrades to
// always-compute and recovers once the store is back.
func buildStack(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stack, error) {
	s := &stack{cache: cache.Disabled{}}

	if cfg.Cache.Enabled {
		store, err := openStore(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("init cache store: %w", err)
		}

		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err = cache.CheckStore(checkCtx, store)
		cancel()
		if err != nil {
			if cfg.Cache.RequireStore {
				_ = store.Close()
				return nil, err
			}
			log.Warn().Err(err).Str("store", cfg.Cache.Store).Msg("cache store unreachable, answers will be computed until it recovers")
		}

		s.store = store
		s.cache = cache.NewExact(store, cache.Options{
			Name:             cfg.Cache.Store,
			Prefix:           cfg.Cache.Prefix,
			TTL:              cfg.Cache.TTL,
			OpTimeout:        cfg.Cache.OpTimeout,
			BreakerThreshold: cfg.Cache.BreakerThreshold,
			BreakerCooldown:  cfg.Cache.BreakerCooldown,
		}, log)
	}

	kb, err := backend.LoadKnowledgeBase(cfg.Backend.KnowledgeBase)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	s.backend = backend.NewSimulated(cfg.Backend.BaseLatency, cfg.Backend.Jitter, cfg.Backend.Seed,
		backend.WithKnowledgeBase(kb))

	s.service = answer.New(s.cache, s.backend, answer.Options{
		TTL:          cfg.Cache.TTL,
		SingleFlight: cfg.Cache.SingleFlight,
	}, log)

	log.Info().
		Bool("cache", cfg.Cache.Enabled).
		Str("store", cfg.Cache.Store).
		Dur("ttl", cfg.Cache.TTL).
		Dur("base_latency", cfg.Backend.BaseLatency).
		Dur("jitter", cfg.Backend.Jitter).
		Int("knowledge_base", kb.Len()).
		Msg("answer stack ready")
	return s, nil
}

func (s *stack) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}
