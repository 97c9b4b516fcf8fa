package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pario-ai/ragcache/pkg/models"
)

// WriteJSON writes rep as indented JSON.
func WriteJSON(w io.Writer, rep models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteText writes a human-readable report.
func WriteText(w io.Writer, rep models.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	ms := func(d time.Duration) string {
		return fmt.Sprintf("%.0f ms", float64(d)/float64(time.Millisecond))
	}

	fmt.Fprintln(tw, "=== Benchmark results ===")
	fmt.Fprintf(tw, "Target rate\t%.2f rps\n", rep.Config.TargetRate)
	fmt.Fprintf(tw, "Duration\t%v (warmup %v)\n", rep.Config.Duration, rep.Config.Warmup)
	fmt.Fprintf(tw, "Repeat ratio\t%.2f (observed %.3f)\n", rep.Config.RepeatRatio, rep.RepeatFraction)
	fmt.Fprintf(tw, "Seed\t%d\n", rep.Config.Seed)
	fmt.Fprintf(tw, "Achieved rate\t%.2f rps\n", rep.AchievedRate)
	fmt.Fprintf(tw, "Requests\t%d issued, %d completed, %d dropped, %d abandoned, %d failed\n",
		rep.Issued, rep.Completed, rep.Dropped, rep.Abandoned, rep.Errors)
	fmt.Fprintf(tw, "Warmup excluded\t%d\n", rep.WarmupExcluded)

	if rep.Empty {
		fmt.Fprintln(tw, "Samples\t0 (no post-warmup data, percentiles not computed)")
	} else {
		fmt.Fprintf(tw, "Samples\t%d\n", rep.Samples)
		fmt.Fprintf(tw, "Hit rate\t%.1f%%\n", rep.HitRate*100)
		fmt.Fprintf(tw, "Latency\tp50=%s  p95=%s  p99=%s  mean=%s  max=%s\n",
			ms(rep.Latencies.P50), ms(rep.Latencies.P95), ms(rep.Latencies.P99),
			ms(rep.Latencies.Mean), ms(rep.Latencies.Max))
		if rep.Config.TargetP95 > 0 {
			verdict := "NOT MET"
			if rep.TargetMet {
				verdict = "OK"
			}
			fmt.Fprintf(tw, "Target p95 < %s\t%s\n", ms(rep.Config.TargetP95), verdict)
		}
	}
	fmt.Fprintf(tw, "In-flight policy\t%s\n", rep.InFlightPolicy)
	for _, d := range rep.Degraded {
		fmt.Fprintf(tw, "Degraded\t%s\n", d)
	}
	return tw.Flush()
}
