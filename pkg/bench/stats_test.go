package bench

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/ragcache/pkg/models"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func record(seq int, issuedAfter, latency time.Duration, outcome models.Outcome, repeat bool) models.RequestRecord {
	issued := t0.Add(issuedAfter)
	return models.RequestRecord{
		Seq:         seq,
		Question:    "q",
		Repeat:      repeat,
		IssuedAt:    issued,
		CompletedAt: issued.Add(latency),
		Outcome:     outcome,
	}
}

func testConfig() Config {
	return Config{
		TargetRate:   10,
		Duration:     10 * time.Second,
		Warmup:       2 * time.Second,
		RepeatRatio:  0.5,
		MaxInFlight:  10,
		DrainTimeout: time.Second,
		TargetP95:    900 * time.Millisecond,
		Seed:         1,
	}
}

func TestSummarizeExcludesWarmup(t *testing.T) {
	cfg := testConfig()
	var records []models.RequestRecord
	// Warmup requests are all very slow misses; they must not show up anywhere.
	for i := range 20 {
		records = append(records, record(i, time.Duration(i)*100*time.Millisecond, 5*time.Second, models.OutcomeMiss, false))
	}
	// 100 post-warmup requests: latencies 1ms..100ms, every other one a hit.
	for i := range 100 {
		outcome := models.OutcomeMiss
		if i%2 == 0 {
			outcome = models.OutcomeHit
		}
		records = append(records, record(20+i, 2*time.Second+time.Duration(i)*50*time.Millisecond, time.Duration(i+1)*time.Millisecond, outcome, i%2 == 0))
	}

	rep := summarize(cfg, records, runFacts{start: t0, issueWindow: cfg.Duration, elapsed: cfg.Duration})

	assert.Equal(t, 120, rep.Issued)
	assert.Equal(t, 20, rep.WarmupExcluded)
	assert.Equal(t, 100, rep.Samples)
	assert.False(t, rep.Empty)
	assert.Equal(t, 50*time.Millisecond, rep.Latencies.P50)
	assert.Equal(t, 95*time.Millisecond, rep.Latencies.P95)
	assert.Equal(t, 99*time.Millisecond, rep.Latencies.P99)
	assert.Equal(t, 100*time.Millisecond, rep.Latencies.Max)
	assert.InDelta(t, float64(50500*time.Microsecond), float64(rep.Latencies.Mean), float64(time.Microsecond))
	assert.InDelta(t, 0.5, rep.HitRate, 1e-9)
	assert.InDelta(t, 0.5, rep.RepeatFraction, 1e-9)
	assert.InDelta(t, 12.0, rep.AchievedRate, 1e-9)
	assert.True(t, rep.TargetMet)
	assert.Equal(t, InFlightPolicy, rep.InFlightPolicy)
	assert.Empty(t, rep.Degraded)
}

func TestSummarizeEmptyWhenWarmupCoversRun(t *testing.T) {
	cfg := testConfig()
	cfg.Warmup = cfg.Duration

	records := []models.RequestRecord{
		record(0, 0, time.Millisecond, models.OutcomeMiss, false),
		record(1, 9*time.Second, time.Millisecond, models.OutcomeHit, true),
	}
	rep := summarize(cfg, records, runFacts{start: t0, issueWindow: cfg.Duration})

	assert.True(t, rep.Empty)
	assert.Zero(t, rep.Samples)
	assert.Zero(t, rep.Latencies)
	assert.Zero(t, rep.HitRate)
	assert.False(t, rep.TargetMet)
	require.NotEmpty(t, rep.Degraded)
	assert.Contains(t, rep.Degraded[0], "warmup")
}

func TestSummarizeErrorsAndSaturation(t *testing.T) {
	cfg := testConfig()
	cfg.Warmup = 0

	failed := record(1, time.Second, 30*time.Second, "", false)
	failed.Err = "ask: status 502"
	records := []models.RequestRecord{
		record(0, 0, 700*time.Millisecond, models.OutcomeMiss, false),
		failed,
	}
	rep := summarize(cfg, records, runFacts{
		start:       t0,
		issueWindow: cfg.Duration,
		dropped:     3,
		abandoned:   1,
		lateIssues:  4,
		maxLag:      300 * time.Millisecond,
	})

	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, 1, rep.Samples, "failed requests are not latency samples")
	assert.Equal(t, 700*time.Millisecond, rep.Latencies.P95)
	assert.Equal(t, 3, rep.Issued)
	assert.Equal(t, 3, rep.Dropped)
	assert.Equal(t, 1, rep.Abandoned)

	joined := ""
	for _, d := range rep.Degraded {
		joined += d + "\n"
	}
	assert.Contains(t, joined, "3 requests dropped")
	assert.Contains(t, joined, "schedule overrun")
	assert.Contains(t, joined, "below target")
	assert.Contains(t, joined, "abandoned")
	assert.Contains(t, joined, "1 requests failed")
}

func TestSummarizeTargetMissed(t *testing.T) {
	cfg := testConfig()
	cfg.Warmup = 0
	records := []models.RequestRecord{
		record(0, 0, 950*time.Millisecond, models.OutcomeMiss, false),
	}
	rep := summarize(cfg, records, runFacts{start: t0, issueWindow: cfg.Duration})
	assert.False(t, rep.TargetMet)
}

func TestWriteText(t *testing.T) {
	cfg := testConfig()
	cfg.Warmup = 0
	rep := summarize(cfg, []models.RequestRecord{
		record(0, 0, 12*time.Millisecond, models.OutcomeHit, true),
	}, runFacts{start: t0, issueWindow: cfg.Duration})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "p95=12 ms")
	assert.Contains(t, out, "Hit rate")
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "drain")

	empty := summarize(Config{TargetRate: 1, Duration: time.Second, Warmup: time.Second, MaxInFlight: 1}, nil, runFacts{start: t0})
	buf.Reset()
	require.NoError(t, WriteText(&buf, empty))
	assert.Contains(t, buf.String(), "percentiles not computed")
	assert.NotContains(t, buf.String(), "p95=")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, models.Report{Empty: true, InFlightPolicy: InFlightPolicy}))
	assert.Contains(t, buf.String(), `"empty": true`)
}
