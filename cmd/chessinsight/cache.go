package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vytor/chessinsight/internal/app"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the persistent evaluation cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many evaluations are cached",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached evaluations older than --older-than",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

var olderThan time.Duration

func init() {
	cachePruneCmd.Flags().DurationVar(&olderThan, "older-than", 0, "maximum age to keep (defaults to EVAL_CACHE_MAX_AGE_HOURS)")
	cacheCmd.AddCommand(cacheStatsCmd, cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*app.App, error) {
	if cfg.EvalCachePath == "" {
		return nil, errors.New("persistent eval cache is disabled (EVAL_CACHE_PATH is empty)")
	}
	return app.New(cfg, nil)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	stack, err := openCache()
	if err != nil {
		return err
	}
	defer stack.Close()

	n, err := stack.Evals.Count(context.Background())
	if err != nil {
		return fmt.Errorf("counting evaluations: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cache:       %s\n", cfg.EvalCachePath)
	fmt.Fprintf(cmd.OutOrStdout(), "Evaluations: %d\n", n)
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	if olderThan > 0 {
		cfg.EvalCacheMaxAgeHours = int(olderThan / time.Hour)
		if cfg.EvalCacheMaxAgeHours == 0 {
			return errors.New("--older-than must be at least 1h")
		}
	}

	stack, err := openCache()
	if err != nil {
		return err
	}
	defer stack.Close()

	removed, err := stack.PruneEvalCache(context.Background())
	if err != nil {
		return fmt.Errorf("pruning evaluations: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d evaluations\n", removed)
	return nil
}
