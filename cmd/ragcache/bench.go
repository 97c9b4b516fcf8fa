package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/ragcache/pkg/bench"
	"github.com/pario-ai/ragcache/pkg/history"
)

func newBenchCmd(configPath *string) *cobra.Command {
	var (
		host         string
		rate         float64
		duration     time.Duration
		warmup       time.Duration
		repeatRatio  float64
		queriesFile  string
		targetP95    time.Duration
		maxInFlight  int
		drainTimeout time.Duration
		seed         uint64
		inProcess    bool
		historyPath  string
		label        string
		jsonOut      bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive fixed-rate load and report p50/p95/p99, hit rate and achieved rate",
		Long: `Issues requests on a fixed schedule (request i at start + i/rps), mixing
novel and repeated questions at --repeat-ratio. Statistics cover only requests
issued after --warmup. Run once with the cache enabled and once with
EXACT_CACHE=0 to compare.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			b := &cfg.Bench
			if flags.Changed("host") {
				b.Host = host
			}
			if flags.Changed("rps") {
				b.Rate = rate
			}
			if flags.Changed("duration") {
				b.Duration = duration
			}
			if flags.Changed("warmup") {
				b.Warmup = warmup
			}
			if flags.Changed("repeat-ratio") {
				b.RepeatRatio = repeatRatio
			}
			if flags.Changed("queries-file") {
				b.QueriesFile = queriesFile
			}
			if flags.Changed("target-p95") {
				b.TargetP95 = targetP95
			}
			if flags.Changed("max-in-flight") {
				b.MaxInFlight = maxInFlight
			}
			if flags.Changed("drain-timeout") {
				b.DrainTimeout = drainTimeout
			}
			if flags.Changed("history") {
				b.HistoryPath = historyPath
			}
			if err := b.Validate(); err != nil {
				return err
			}
			log := newLogger(cfg)

			var questions []string
			if b.QueriesFile != "" {
				if questions, err = bench.LoadQuestions(b.QueriesFile); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var (
				asker        bench.Asker
				cacheEnabled bool
			)
			if inProcess {
				s, err := buildStack(ctx, cfg, log)
				if err != nil {
					return err
				}
				defer s.Close()
				asker = bench.InProcess(s.service)
				cacheEnabled = s.cache.Enabled()
			} else {
				client := bench.NewHTTPClient(b.Host, 30*time.Second)
				hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				health, err := client.Health(hctx)
				cancel()
				if err != nil {
					return fmt.Errorf("endpoint not reachable: %w", err)
				}
				asker = client
				cacheEnabled = health.CacheEnabled
			}

			rep, err := bench.NewDriver(asker, questions, log).Run(ctx, bench.ConfigFrom(*b, seed))
			if err != nil {
				return err
			}

			if jsonOut {
				err = bench.WriteJSON(os.Stdout, rep)
			} else {
				err = bench.WriteText(os.Stdout, rep)
			}
			if err != nil {
				return err
			}

			if b.HistoryPath != "" {
				h, err := history.New(b.HistoryPath)
				if err != nil {
					log.Error().Err(err).Msg("open run history")
					return nil
				}
				defer h.Close()
				id, err := h.Record(context.WithoutCancel(ctx), history.Summarize(rep, label, cacheEnabled))
				if err != nil {
					log.Error().Err(err).Msg("record run")
					return nil
				}
				log.Info().Str("run_id", id).Str("summary", bench.Describe(rep)).Msg("run recorded")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&host, "host", "", "ragcache endpoint (default from config, http://127.0.0.1:8088)")
	flags.Float64Var(&rate, "rps", 0, "target requests per second (default 5)")
	flags.DurationVar(&duration, "duration", 0, "issue window (default 120s)")
	flags.DurationVar(&warmup, "warmup", 0, "leading window excluded from statistics (default 10s)")
	flags.Float64Var(&repeatRatio, "repeat-ratio", 0, "probability of repeating an earlier question (default 0.7)")
	flags.StringVar(&queriesFile, "queries-file", "", "file of seed questions, one per line")
	flags.DurationVar(&targetP95, "target-p95", 0, "p95 latency target (default 900ms)")
	flags.IntVar(&maxInFlight, "max-in-flight", 0, "in-flight request window; requests beyond it are dropped (default 256)")
	flags.DurationVar(&drainTimeout, "drain-timeout", 0, "how long to wait for in-flight requests after the schedule ends (default 5s)")
	flags.Uint64Var(&seed, "seed", 0, "question selection seed (0 draws one, echoed in the report)")
	flags.BoolVar(&inProcess, "in-process", false, "call the answer service directly instead of over HTTP")
	flags.StringVar(&historyPath, "history", "", "record the run summary in this SQLite database")
	flags.StringVar(&label, "label", "", "label stored with the run summary")
	flags.BoolVar(&jsonOut, "json", false, "print the report as JSON")
	return cmd
}
