// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/overlap-engine/internal/cache"
	"github.com/pdiddy/overlap-engine/internal/secrets"
	"github.com/pdiddy/overlap-engine/internal/serp"
	"github.com/pdiddy/overlap-engine/pkg/types"
)

const defaultUserAgent = "overlap-engine/0.1"

// addPipelineFlags registers the discovery knobs shared by discover and
// batch. Defaults of zero defer to the config file, then to reference
// defaults.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Int("depth", 0, "ranked result URLs fetched per phrase (default 10)")
	cmd.Flags().Int("sources", 0, "top seed URLs to harvest candidates from (default 3)")
	cmd.Flags().Int("harvest-limit", 0, "max ranking phrases requested per source URL (default 100)")
	cmd.Flags().Int("candidate-cap", 0, "max candidates evaluated for overlap (default 20)")
	cmd.Flags().Int("batch-size", 0, "candidates evaluated concurrently per batch (default 3)")
	cmd.Flags().Int("threshold", 0, "minimum overlap percentage to qualify (default 40)")
	cmd.Flags().Int("max-supporting", 0, "stop after this many qualifying phrases (default 4)")
	cmd.Flags().Bool("backfill", false, "pad the output with top-ranked non-qualifying candidates")
	cmd.Flags().Int("backfill-min", 0, "minimum output count backfill pads toward (default 5)")
	cmd.Flags().Duration("budget", 0, "wall-clock budget for the whole run (default 2m)")
	cmd.Flags().String("policy", "", "overlap formula: jaccard or min (default jaccard)")
	cmd.Flags().Duration("interval", 0, "minimum spacing between evaluation calls (default 100ms)")
	cmd.Flags().Duration("timeout", 0, "per-call HTTP timeout (default 30s)")
}

// addCacheFlags registers the provider response cache knobs.
func addCacheFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("cache", false, "cache provider responses in SQLite")
	cmd.Flags().String("cache-path", "", "cache database file (default overlap-cache.db)")
	cmd.Flags().Duration("cache-ttl", 0, "cache entry lifetime (default 24h)")
}

// intKnob resolves a knob from its flag when set, else the config file.
// Zero falls through to the reference default in Normalize.
func intKnob(cmd *cobra.Command, flag, key string) int {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetInt(flag)
		return v
	}
	return viper.GetInt(key)
}

func durationKnob(cmd *cobra.Command, flag, key string) time.Duration {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetDuration(flag)
		return v
	}
	return viper.GetDuration(key)
}

func stringKnob(cmd *cobra.Command, flag, key string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	return viper.GetString(key)
}

func boolKnob(cmd *cobra.Command, flag, key string) bool {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetBool(flag)
		return v
	}
	return viper.GetBool(key)
}

// pipelineConfigFromFlags assembles the run configuration from flags and
// the config file.
func pipelineConfigFromFlags(cmd *cobra.Command) types.PipelineConfig {
	return types.PipelineConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   durationKnob(cmd, "timeout", "timeout"),
			UserAgent: defaultUserAgent,
		},
		SeedDepth:        intKnob(cmd, "depth", "seed_depth"),
		SourceURLCount:   intKnob(cmd, "sources", "source_url_count"),
		HarvestLimit:     intKnob(cmd, "harvest-limit", "harvest_limit"),
		CandidateCap:     intKnob(cmd, "candidate-cap", "candidate_cap"),
		EvalBatchSize:    intKnob(cmd, "batch-size", "eval_batch_size"),
		OverlapThreshold: intKnob(cmd, "threshold", "overlap_threshold"),
		MaxSupporting:    intKnob(cmd, "max-supporting", "max_supporting"),
		Backfill:         boolKnob(cmd, "backfill", "backfill"),
		BackfillMin:      intKnob(cmd, "backfill-min", "backfill_min"),
		WallClockBudget:  durationKnob(cmd, "budget", "wall_clock_budget"),
		ReportingCap:     viper.GetInt("reporting_cap"),
		ScorePolicy:      stringKnob(cmd, "policy", "score_policy"),
		CallInterval:     durationKnob(cmd, "interval", "call_interval"),
	}
}

// buildClients constructs the provider clients, wrapped with the response
// cache when enabled. The returned store is nil when caching is off; the
// caller closes it.
func buildClients(cmd *cobra.Command, httpCfg types.HTTPConfig) (serp.SERPClient, serp.RankingsClient, *cache.Store, error) {
	loginFlag, _ := cmd.Flags().GetString("login")
	passwordFlag, _ := cmd.Flags().GetString("password")
	login, password, err := secrets.Credentials(loadedSecrets, loginFlag, passwordFlag)
	if err != nil {
		return nil, nil, nil, err
	}

	if httpCfg.Timeout <= 0 {
		httpCfg.Timeout = types.DefaultCallTimeout
	}
	client := &http.Client{Timeout: httpCfg.Timeout}
	dfs := serp.NewDataForSEO(client, login, password, httpCfg)

	if !boolKnob(cmd, "cache", "cache.enabled") {
		return dfs, dfs, nil, nil
	}

	store, err := cache.Open(types.CacheConfig{
		Enabled: true,
		Path:    stringKnob(cmd, "cache-path", "cache.path"),
		TTL:     durationKnob(cmd, "cache-ttl", "cache.ttl"),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if n, err := store.Cleanup(context.Background()); err == nil && n > 0 {
		fmt.Fprintf(os.Stderr, "Cache: removed %d expired entries\n", n)
	}
	return &cache.SERPClient{Inner: dfs, Store: store},
		&cache.RankingsClient{Inner: dfs, Store: store},
		store, nil
}
