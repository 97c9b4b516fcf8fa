// Package bench drives fixed-rate load against the answer service and
// reports latency percentiles over the post-warmup window.
package bench

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/pario-ai/ragcache/pkg/config"
	"github.com/pario-ai/ragcache/pkg/models"
)

// Config is one run's parameters. It is immutable for the run.
type Config struct {
	TargetRate   float64
	Duration     time.Duration
	Warmup       time.Duration
	RepeatRatio  float64
	MaxInFlight  int
	DrainTimeout time.Duration
	TargetP95    time.Duration
	// Seed fixes question selection; zero draws a random seed, echoed in the report.
	Seed uint64
}

// ConfigFrom converts the configured bench defaults.
func ConfigFrom(b config.BenchConfig, seed uint64) Config {
	return Config{
		TargetRate:   b.Rate,
		Duration:     b.Duration,
		Warmup:       b.Warmup,
		RepeatRatio:  b.RepeatRatio,
		MaxInFlight:  b.MaxInFlight,
		DrainTimeout: b.DrainTimeout,
		TargetP95:    b.TargetP95,
		Seed:         seed,
	}
}

// Validate rejects malformed parameters; nothing is clamped.
func (c Config) Validate() error {
	return config.BenchConfig{
		Rate:         c.TargetRate,
		Duration:     c.Duration,
		Warmup:       c.Warmup,
		RepeatRatio:  c.RepeatRatio,
		MaxInFlight:  c.MaxInFlight,
		DrainTimeout: c.DrainTimeout,
	}.Validate()
}

func (c Config) runConfig() models.RunConfig {
	return models.RunConfig{
		TargetRate:  c.TargetRate,
		Duration:    c.Duration,
		Warmup:      c.Warmup,
		RepeatRatio: c.RepeatRatio,
		MaxInFlight: c.MaxInFlight,
		TargetP95:   c.TargetP95,
		Seed:        c.Seed,
	}
}

// Asker sends one question to the service under test.
type Asker interface {
	Ask(ctx context.Context, question string) (models.Outcome, error)
}

// AskerFunc adapts a function to Asker.
type AskerFunc func(ctx context.Context, question string) (models.Outcome, error)

// Ask calls f.
func (f AskerFunc) Ask(ctx context.Context, question string) (models.Outcome, error) {
	return f(ctx, question)
}

// Driver issues requests on a fixed schedule.
type Driver struct {
	asker     Asker
	questions []string
	log       zerolog.Logger
	now       func() time.Time
}

// NewDriver creates a Driver. questions seeds the novel question pool and may be empty.
func NewDriver(a Asker, questions []string, log zerolog.Logger) *Driver {
	return &Driver{
		asker:     a,
		questions: questions,
		log:       log.With().Str("component", "bench").Logger(),
		now:       time.Now,
	}
}

// Run executes one benchmark. Request i is due at start + i/TargetRate.
// Cancelling ctx stops issuing; in-flight requests are still drained and
// the partial run is reported.
func (d *Driver) Run(ctx context.Context, cfg Config) (models.Report, error) {
	if err := cfg.Validate(); err != nil {
		return models.Report{}, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64()
	}
	gen := NewGenerator(d.questions, cfg.RepeatRatio, rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)))
	interval := time.Duration(float64(time.Second) / cfg.TargetRate)

	// Requests outlive ctx so an interrupted run can still drain.
	reqCtx, cancelReqs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelReqs()

	var (
		mu        sync.Mutex
		records   []models.RequestRecord
		finalized bool
		wg        conc.WaitGroup
		facts     runFacts
	)
	slots := make(chan struct{}, cfg.MaxInFlight)
	dispatched := 0

	start := d.now()
	facts.start = start
	d.log.Info().
		Float64("rate", cfg.TargetRate).
		Dur("duration", cfg.Duration).
		Dur("warmup", cfg.Warmup).
		Float64("repeat_ratio", cfg.RepeatRatio).
		Uint64("seed", cfg.Seed).
		Msg("benchmark started")

schedule:
	for i := 0; ; i++ {
		offset := time.Duration(i) * interval
		if offset >= cfg.Duration {
			break
		}
		due := start.Add(offset)
		if wait := due.Sub(d.now()); wait > 0 {
			select {
			case <-ctx.Done():
				facts.cancelled = true
				break schedule
			case <-time.After(wait):
			}
		} else if ctx.Err() != nil {
			facts.cancelled = true
			break
		}

		issued := d.now()
		lag := issued.Sub(due)
		if lag > interval/2 {
			facts.lateIssues++
		}
		if lag > facts.maxLag {
			facts.maxLag = lag
		}

		select {
		case slots <- struct{}{}:
		default:
			facts.dropped++
			d.log.Warn().Int("seq", i).Int("in_flight", cfg.MaxInFlight).Msg("in-flight window full, request dropped")
			continue
		}

		q, repeat := gen.Next()
		seq := i
		dispatched++
		wg.Go(func() {
			defer func() { <-slots }()
			outcome, err := d.asker.Ask(reqCtx, q)
			rec := models.RequestRecord{
				Seq:         seq,
				Question:    q,
				Repeat:      repeat,
				IssuedAt:    issued,
				CompletedAt: d.now(),
				Outcome:     outcome,
			}
			if err != nil {
				rec.Outcome = ""
				rec.Err = err.Error()
			}
			mu.Lock()
			if !finalized {
				records = append(records, rec)
			}
			mu.Unlock()
		})
	}

	facts.issueWindow = d.now().Sub(start)
	if !facts.cancelled && facts.issueWindow < cfg.Duration {
		facts.issueWindow = cfg.Duration
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.DrainTimeout):
		d.log.Warn().Dur("drain_timeout", cfg.DrainTimeout).Msg("drain timeout reached, cancelling in-flight requests")
	}

	mu.Lock()
	finalized = true
	snapshot := records
	mu.Unlock()
	cancelReqs()
	<-done

	facts.abandoned = dispatched - len(snapshot)
	facts.elapsed = d.now().Sub(start)

	rep := summarize(cfg, snapshot, facts)
	d.log.Info().
		Int("samples", rep.Samples).
		Dur("p95", rep.Latencies.P95).
		Float64("hit_rate", rep.HitRate).
		Float64("achieved_rate", rep.AchievedRate).
		Msg("benchmark finished")
	return rep, nil
}

// Describe is a one-line summary used in logs and history labels.
func Describe(rep models.Report) string {
	if rep.Empty {
		return fmt.Sprintf("%d requests, no post-warmup samples", rep.Issued)
	}
	return fmt.Sprintf("%d samples, p95=%v, hit rate %.1f%%",
		rep.Samples, rep.Latencies.P95.Round(time.Millisecond), rep.HitRate*100)
}
