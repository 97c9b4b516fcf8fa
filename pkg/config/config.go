package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Cache store backends.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds all ragcache configuration.
type Config struct {
	Listen  string        `yaml:"listen"`
	Cache   CacheConfig   `yaml:"cache"`
	Backend BackendConfig `yaml:"backend"`
	Bench   BenchConfig   `yaml:"bench"`
	Log     LogConfig     `yaml:"log"`
}

// CacheConfig controls the exact-match answer cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Store   string        `yaml:"store"`
	URL     string        `yaml:"url"`
	DBPath  string        `yaml:"db_path"`
	TTL     time.Duration `yaml:"ttl"`
	Prefix  string        `yaml:"prefix"`
	// OpTimeout bounds every store round-trip.
	OpTimeout time.Duration `yaml:"op_timeout"`
	// RequireStore makes an unreachable store at startup fatal instead of
	// degrading to always-compute.
	RequireStore bool `yaml:"require_store"`
	SingleFlight bool `yaml:"single_flight"`
	// BreakerThreshold is the number of consecutive store failures that open
	// the circuit; BreakerCooldown is how long it stays open.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// BackendConfig controls the simulated slow backend.
type BackendConfig struct {
	BaseLatency   time.Duration `yaml:"base_latency"`
	Jitter        time.Duration `yaml:"jitter"`
	KnowledgeBase string        `yaml:"knowledge_base"`
	Seed          uint64        `yaml:"seed"`
}

// BenchConfig holds benchmark driver defaults; CLI flags override them.
type BenchConfig struct {
	Host         string        `yaml:"host"`
	Rate         float64       `yaml:"rate"`
	Duration     time.Duration `yaml:"duration"`
	Warmup       time.Duration `yaml:"warmup"`
	RepeatRatio  float64       `yaml:"repeat_ratio"`
	QueriesFile  string        `yaml:"queries_file"`
	TargetP95    time.Duration `yaml:"target_p95"`
	MaxInFlight  int           `yaml:"max_in_flight"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
	HistoryPath  string        `yaml:"history_path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8088",
		Cache: CacheConfig{
			Enabled:          true,
			Store:            BackendRedis,
			URL:              "redis://localhost:6379/0",
			DBPath:           "ragcache.db",
			TTL:              time.Hour,
			Prefix:           "qa:",
			OpTimeout:        250 * time.Millisecond,
			BreakerThreshold: 3,
			BreakerCooldown:  5 * time.Second,
		},
		Backend: BackendConfig{
			BaseLatency: 600 * time.Millisecond,
			Jitter:      200 * time.Millisecond,
		},
		Bench: BenchConfig{
			Host:         "http://127.0.0.1:8088",
			Rate:         5,
			Duration:     120 * time.Second,
			Warmup:       10 * time.Second,
			RepeatRatio:  0.7,
			TargetP95:    900 * time.Millisecond,
			MaxInFlight:  256,
			DrainTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays the recognised environment options onto cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup("REDIS_URL"); ok && v != "" {
		cfg.Cache.URL = v
	}
	if v, ok := lookup("RAGCACHE_LISTEN"); ok && v != "" {
		cfg.Listen = v
	}
	if v, ok := lookup("RAGCACHE_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup("CACHE_TTL_SECONDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: CACHE_TTL_SECONDS=%q is not an integer", ErrInvalid, v)
		}
		cfg.Cache.TTL = time.Duration(n) * time.Second
	}
	if v, ok := lookup("SIM_LATENCY_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SIM_LATENCY_MS=%q is not an integer", ErrInvalid, v)
		}
		cfg.Backend.BaseLatency = time.Duration(n) * time.Millisecond
	}
	if v, ok := lookup("SIM_JITTER_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SIM_JITTER_MS=%q is not an integer", ErrInvalid, v)
		}
		cfg.Backend.Jitter = time.Duration(n) * time.Millisecond
	}
	if v, ok := lookup("EXACT_CACHE"); ok {
		switch v {
		case "1":
			cfg.Cache.Enabled = true
		case "0":
			cfg.Cache.Enabled = false
		default:
			return fmt.Errorf("%w: EXACT_CACHE=%q must be 1 or 0", ErrInvalid, v)
		}
	}
	return nil
}

// Validate reports the first malformed setting. Values are never clamped.
func (c *Config) Validate() error {
	switch c.Cache.Store {
	case BackendRedis, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown cache store %q", ErrInvalid, c.Cache.Store)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive, got %v", ErrInvalid, c.Cache.TTL)
	}
	if c.Cache.OpTimeout <= 0 {
		return fmt.Errorf("%w: cache op_timeout must be positive, got %v", ErrInvalid, c.Cache.OpTimeout)
	}
	if c.Cache.BreakerThreshold <= 0 {
		return fmt.Errorf("%w: cache breaker_threshold must be positive, got %d", ErrInvalid, c.Cache.BreakerThreshold)
	}
	if c.Backend.BaseLatency < 0 {
		return fmt.Errorf("%w: backend base_latency must not be negative, got %v", ErrInvalid, c.Backend.BaseLatency)
	}
	if c.Backend.Jitter < 0 {
		return fmt.Errorf("%w: backend jitter must not be negative, got %v", ErrInvalid, c.Backend.Jitter)
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Log.Level)
		}
	}
	return c.Bench.Validate()
}

// Validate checks the benchmark parameters.
func (b BenchConfig) Validate() error {
	if math.IsNaN(b.Rate) || math.IsInf(b.Rate, 0) || b.Rate <= 0 {
		return fmt.Errorf("%w: bench rate must be a positive number, got %v", ErrInvalid, b.Rate)
	}
	if time.Duration(float64(time.Second)/b.Rate) <= 0 {
		return fmt.Errorf("%w: bench rate %v leaves no time between requests", ErrInvalid, b.Rate)
	}
	if b.Duration <= 0 {
		return fmt.Errorf("%w: bench duration must be positive, got %v", ErrInvalid, b.Duration)
	}
	if b.Warmup < 0 {
		return fmt.Errorf("%w: bench warmup must not be negative, got %v", ErrInvalid, b.Warmup)
	}
	if math.IsNaN(b.RepeatRatio) || b.RepeatRatio < 0 || b.RepeatRatio > 1 {
		return fmt.Errorf("%w: bench repeat_ratio must be within [0,1], got %v", ErrInvalid, b.RepeatRatio)
	}
	if b.MaxInFlight <= 0 {
		return fmt.Errorf("%w: bench max_in_flight must be positive, got %d", ErrInvalid, b.MaxInFlight)
	}
	if b.DrainTimeout < 0 {
		return fmt.Errorf("%w: bench drain_timeout must not be negative, got %v", ErrInvalid, b.DrainTimeout)
	}
	return nil
}
