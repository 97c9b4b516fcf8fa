package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/pario-ai/ragcache/pkg/models"
)

func formatAnswer(res models.AskResult) string {
	return fmt.Sprintf("%s\n\n(cache %s, key %q, match %s, %v)",
		res.Answer.Text, res.Outcome, res.Key, res.Answer.Match, res.Latency.Round(time.Millisecond))
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	entries := fmt.Sprint(stats.Entries)
	if stats.Entries < 0 {
		entries = "n/a"
	}
	return fmt.Sprintf("Cache Statistics (%s)\n"+
		"  Entries:  %s\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Errors:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Backend, entries, stats.Hits, stats.Misses, stats.Errors, hitRate)
}

// formatRuns formats run summaries as a text table.
func formatRuns(runs []models.RunSummary) string {
	if len(runs) == 0 {
		return "No benchmark runs recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-12s %-5s %6s %8s %10s %10s %7s %6s\n",
		"Run ID", "Label", "Cache", "RPS", "Samples", "p50", "p95", "Hit%", "Target")
	b.WriteString(strings.Repeat("-", 110) + "\n")
	for _, r := range runs {
		cache, target := "off", "miss"
		if r.CacheEnabled {
			cache = "on"
		}
		if r.TargetMet {
			target = "met"
		}
		fmt.Fprintf(&b, "%-36s %-12s %-5s %6.1f %8d %10v %10v %6.1f%% %6s\n",
			r.ID, r.Label, cache, r.TargetRate, r.Samples,
			r.P50.Round(time.Millisecond), r.P95.Round(time.Millisecond), r.HitRate*100, target)
	}
	return b.String()
}
