package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/ragcache/pkg/cache"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the answer cache store",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cfg.Cache)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := context.Background()
			if err := cache.CheckStore(ctx, store); err != nil {
				return err
			}
			fmt.Printf("Store:   %s\n", cfg.Cache.Store)
			fmt.Printf("Prefix:  %s\n", cfg.Cache.Prefix)
			fmt.Printf("TTL:     %v\n", cfg.Cache.TTL)
			if sizer, ok := store.(cache.Sizer); ok {
				n, err := sizer.Len(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Entries: %d\n", n)
			}
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cfg.Cache)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				return fmt.Errorf("cache store %s cannot be cleared", cfg.Cache.Store)
			}
			if err := clearer.Clear(context.Background(), expiredOnly); err != nil {
				return err
			}
			if expiredOnly {
				fmt.Println("Expired cache entries cleared.")
			} else {
				fmt.Println("All cache entries cleared.")
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries (redis expires keys itself)")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
