// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/overlap-engine/internal/batch"
	"github.com/pdiddy/overlap-engine/internal/metrics"
	"github.com/pdiddy/overlap-engine/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch [input.csv]",
	Short: "Run overlap discovery for a CSV of seed phrases",
	Long: `Batch reads seed phrases from a CSV file (the phrase column is found by
header name: keyword, keywords, seed_keyword, phrase, term, or query) and
runs the overlap pipeline for each on a worker pool. Per-phrase failures
do not stop the batch. Results go to a CSV file with one row per seed,
plus a JSON summary.`,
	RunE: runBatch,
}

func init() {
	addPipelineFlags(batchCmd)
	addCacheFlags(batchCmd)
	batchCmd.Flags().Int("workers", 0, "worker pool size (default 10)")
	batchCmd.Flags().Int("max-phrases", 0, "cap on input rows processed (0 = all)")
	batchCmd.Flags().String("out", "overlap-results.csv", "results CSV file")
	batchCmd.Flags().String("summary", "overlap-summary.json", "JSON summary file")
	batchCmd.Flags().Int("metrics-port", 0, "expose Prometheus metrics on :port/metrics during the run")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide the input CSV file")
	}

	maxPhrases := intKnob(cmd, "max-phrases", "batch.max_phrases")
	phrases, err := batch.ReadPhrases(args[0], maxPhrases)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Loaded %d seed phrases from %s\n", len(phrases), args[0])

	cfg := pipelineConfigFromFlags(cmd)
	serpClient, rankingsClient, store, err := buildClients(cmd, cfg.HTTPConfig)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	p, err := pipeline.New(serpClient, rankingsClient, cfg)
	if err != nil {
		return err
	}

	if port := intKnob(cmd, "metrics-port", "batch.metrics_port"); port > 0 {
		srv := metrics.Start(port)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(ctx)
		}()
		fmt.Fprintf(os.Stderr, "Metrics on :%d/metrics\n", port)
	}

	workers := intKnob(cmd, "workers", "batch.workers")
	runner := batch.NewRunner(p, workers)
	outcomes, summary, err := runner.Run(context.Background(), phrases, os.Stderr)
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("out")
	if err := batch.WriteResults(outPath, outcomes); err != nil {
		return err
	}
	summaryPath, _ := cmd.Flags().GetString("summary")
	if err := batch.WriteSummary(summaryPath, summary); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Done: %d succeeded, %d failed, %d supporting phrases in %s\n",
		summary.Succeeded, summary.Failed, summary.SupportingTotal, summary.Elapsed)
	fmt.Fprintf(os.Stderr, "Results: %s  Summary: %s\n", outPath, summaryPath)

	if summary.Failed == summary.Total {
		return fmt.Errorf("all %d seed phrases failed", summary.Total)
	}
	return nil
}
