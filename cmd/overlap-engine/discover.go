// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/overlap-engine/internal/pipeline"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [seed phrase]",
	Short: "Find supporting phrases for a single seed phrase",
	Long: `Discover runs the full overlap pipeline for one seed phrase: fetch its
top-ranking URLs, harvest candidate phrases from the top pages, then keep
the candidates whose own ranked results overlap the seed's above the
threshold. Failed provider calls degrade to empty results; only a seed
with no results at all fails the run.`,
	RunE: runDiscover,
}

func init() {
	addPipelineFlags(discoverCmd)
	addCacheFlags(discoverCmd)
	discoverCmd.Flags().Bool("json", false, "output the outcome as JSON")
	discoverCmd.Flags().String("save", "", "save the run to a YAML report file")
	discoverCmd.Flags().String("csv", "", "save supporting phrases to a CSV file")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a seed phrase")
	}
	seed := strings.Join(args, " ")

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

	out := p.Run(context.Background(), seed, os.Stderr)

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := pipeline.WriteReport(path, out, p.Config()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved report to %s\n", path)
	}
	if path, _ := cmd.Flags().GetString("csv"); path != "" {
		if err := pipeline.WriteCSV(path, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved CSV to %s\n", path)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		if err := pipeline.FormatJSON(out, os.Stdout); err != nil {
			return err
		}
	} else {
		pipeline.FormatTable(out, os.Stdout)
	}

	if out.Failed {
		return fmt.Errorf("discovery failed: %s", out.Reason)
	}
	return nil
}
