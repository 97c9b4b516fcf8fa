package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pario-ai/ragcache/pkg/history"
)

func newRunsCmd(configPath *string) *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded benchmark runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Bench.HistoryPath
			}
			if dbPath == "" {
				return errors.New("no history database: set bench.history_path or pass --db")
			}

			h, err := history.New(dbPath)
			if err != nil {
				return err
			}
			defer h.Close()

			runs, err := h.List(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No benchmark runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tCACHE\tRPS\tSAMPLES\tP50\tP95\tP99\tHIT RATE\tTARGET\tWHEN")
			for _, r := range runs {
				cache, target := "off", "miss"
				if r.CacheEnabled {
					cache = "on"
				}
				if r.TargetMet {
					target = "met"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%d\t%v\t%v\t%v\t%.1f%%\t%s\t%s\n",
					r.ID, r.Label, cache, r.TargetRate, r.Samples,
					r.P50.Round(time.Millisecond), r.P95.Round(time.Millisecond), r.P99.Round(time.Millisecond),
					r.HitRate*100, target, humanize.Time(r.CreatedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "history database (defaults to bench.history_path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show (0 for all)")
	return cmd
}
