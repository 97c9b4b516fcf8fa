package bench

import (
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pario-ai/ragcache/pkg/models"
)

// InFlightPolicy describes how requests pending at the end of a run are treated.
const InFlightPolicy = "drain: requests in flight when the schedule ends are awaited up to the drain timeout; any still pending are cancelled and counted as abandoned"

// runFacts are the driver observations summarize needs besides the records.
type runFacts struct {
	start       time.Time
	issueWindow time.Duration
	elapsed     time.Duration
	dropped     int
	abandoned   int
	lateIssues  int
	maxLag      time.Duration
	cancelled   bool
}

// summarize builds a report from the records of one run. Records issued
// before start+Warmup are excluded from every statistic.
func summarize(cfg Config, records []models.RequestRecord, facts runFacts) models.Report {
	rep := models.Report{
		Config:         cfg.runConfig(),
		StartedAt:      facts.start,
		Elapsed:        facts.elapsed,
		Completed:      len(records),
		Dropped:        facts.dropped,
		Abandoned:      facts.abandoned,
		LateIssues:     facts.lateIssues,
		MaxScheduleLag: facts.maxLag,
		InFlightPolicy: InFlightPolicy,
	}
	rep.Issued = rep.Completed + rep.Abandoned

	warmupEnd := facts.start.Add(cfg.Warmup)
	var latencies []float64
	var hits, repeats, postWarmup int
	for _, r := range records {
		if r.Failed() {
			rep.Errors++
		}
		if r.IssuedAt.Before(warmupEnd) {
			rep.WarmupExcluded++
			continue
		}
		postWarmup++
		if r.Repeat {
			repeats++
		}
		if r.Failed() {
			continue
		}
		latencies = append(latencies, float64(r.Latency()))
		if r.Outcome == models.OutcomeHit {
			hits++
		}
	}

	rep.Samples = len(latencies)
	if rep.Samples == 0 {
		rep.Empty = true
	} else {
		slices.Sort(latencies)
		rep.Latencies = models.Latencies{
			P50:  time.Duration(stat.Quantile(0.50, stat.Empirical, latencies, nil)),
			P95:  time.Duration(stat.Quantile(0.95, stat.Empirical, latencies, nil)),
			P99:  time.Duration(stat.Quantile(0.99, stat.Empirical, latencies, nil)),
			Mean: time.Duration(stat.Mean(latencies, nil)),
			Max:  time.Duration(latencies[len(latencies)-1]),
		}
		rep.HitRate = float64(hits) / float64(rep.Samples)
		rep.TargetMet = cfg.TargetP95 <= 0 || rep.Latencies.P95 < cfg.TargetP95
	}
	if postWarmup > 0 {
		rep.RepeatFraction = float64(repeats) / float64(postWarmup)
	}

	if facts.issueWindow > 0 {
		rep.AchievedRate = float64(rep.Issued) / facts.issueWindow.Seconds()
	}

	rep.Degraded = degraded(cfg, rep, facts)
	return rep
}

func degraded(cfg Config, rep models.Report, facts runFacts) []string {
	var notes []string
	if facts.cancelled {
		notes = append(notes, "run cancelled before the configured duration")
	}
	if rep.Empty {
		if cfg.Warmup >= cfg.Duration {
			notes = append(notes, fmt.Sprintf("no samples: warmup %v covers the whole %v run", cfg.Warmup, cfg.Duration))
		} else {
			notes = append(notes, "no samples after warmup")
		}
	}
	if rep.Dropped > 0 {
		notes = append(notes, fmt.Sprintf("%d requests dropped: %d requests already in flight", rep.Dropped, cfg.MaxInFlight))
	}
	if rep.LateIssues > 0 {
		notes = append(notes, fmt.Sprintf("schedule overrun: %d requests issued late, max lag %v", rep.LateIssues, rep.MaxScheduleLag.Round(time.Millisecond)))
	}
	if rep.AchievedRate > 0 && rep.AchievedRate < cfg.TargetRate*0.95 && !facts.cancelled {
		notes = append(notes, fmt.Sprintf("achieved rate %.2f rps below target %.2f rps", rep.AchievedRate, cfg.TargetRate))
	}
	if rep.Abandoned > 0 {
		notes = append(notes, fmt.Sprintf("%d requests abandoned after the drain timeout", rep.Abandoned))
	}
	if rep.Errors > 0 {
		notes = append(notes, fmt.Sprintf("%d requests failed", rep.Errors))
	}
	return notes
}
