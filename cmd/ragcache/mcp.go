package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/ragcache/pkg/history"
	"github.com/pario-ai/ragcache/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve ragcache tools over MCP (JSON-RPC on stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := buildStack(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer s.Close()

			var runs mcp.RunLister
			if cfg.Bench.HistoryPath != "" {
				h, err := history.New(cfg.Bench.HistoryPath)
				if err != nil {
					return err
				}
				defer h.Close()
				runs = h
			}

			return mcp.New(s.service, s.cache, runs, version, log).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
