// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for components that call the
// search-data provider.
type HTTPConfig struct {
	// Timeout is the per-call HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "overlap-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// PipelineConfig holds the knobs for a single overlap-discovery run.
// Every value is optional; Normalize fills reference defaults. Depth,
// batch size, and cap values are deliberately configuration, not constants.
type PipelineConfig struct {
	HTTPConfig `yaml:",inline"`

	// SeedDepth is how many ranked result URLs to request for the seed
	// phrase and for each evaluated candidate (default 10).
	SeedDepth int `json:"seed_depth" yaml:"seed_depth"`

	// SourceURLCount is how many top seed URLs to harvest ranking
	// phrases from (default 3).
	SourceURLCount int `json:"source_url_count" yaml:"source_url_count"`

	// HarvestLimit is the maximum number of ranking phrases requested
	// per source URL (default 100).
	HarvestLimit int `json:"harvest_limit" yaml:"harvest_limit"`

	// CandidateCap bounds how many ranked candidates are evaluated for
	// overlap (default 20).
	CandidateCap int `json:"candidate_cap" yaml:"candidate_cap"`

	// EvalBatchSize is how many candidates are evaluated concurrently in
	// one batch (default 3). Batches run sequentially.
	EvalBatchSize int `json:"eval_batch_size" yaml:"eval_batch_size"`

	// OverlapThreshold is the minimum overlap percentage for a candidate
	// to qualify as supporting (default 40).
	OverlapThreshold int `json:"overlap_threshold" yaml:"overlap_threshold"`

	// MaxSupporting is the output quota: evaluation short-circuits once
	// this many qualifying phrases are found (default 4).
	MaxSupporting int `json:"max_supporting" yaml:"max_supporting"`

	// Backfill enables padding the output with top-ranked non-qualifying
	// candidates when fewer than BackfillMin phrases qualify. Off by
	// default: backfilled entries carry no overlap confidence.
	Backfill bool `json:"backfill" yaml:"backfill"`

	// BackfillMin is the minimum viable output count the backfill policy
	// pads toward (default 5).
	BackfillMin int `json:"backfill_min" yaml:"backfill_min"`

	// WallClockBudget bounds the whole run (default 120s). Exceeding it
	// ends the run early with whatever partial results exist.
	WallClockBudget time.Duration `json:"wall_clock_budget" yaml:"wall_clock_budget"`

	// ReportingCap truncates the ranked candidate list included in the
	// outcome (default 20).
	ReportingCap int `json:"reporting_cap" yaml:"reporting_cap"`

	// ScorePolicy selects the overlap formula: "jaccard" (default) or
	// "min". One policy applies to the whole run.
	ScorePolicy string `json:"score_policy" yaml:"score_policy"`

	// CallInterval is the minimum spacing between successive outbound
	// evaluation calls (default 100ms).
	CallInterval time.Duration `json:"call_interval" yaml:"call_interval"`
}

// Reference defaults for PipelineConfig.
const (
	DefaultSeedDepth        = 10
	DefaultSourceURLCount   = 3
	DefaultHarvestLimit     = 100
	DefaultCandidateCap     = 20
	DefaultEvalBatchSize    = 3
	DefaultOverlapThreshold = 40
	DefaultMaxSupporting    = 4
	DefaultBackfillMin      = 5
	DefaultWallClockBudget  = 120 * time.Second
	DefaultReportingCap     = 20
	DefaultCallTimeout      = 30 * time.Second
	DefaultCallInterval     = 100 * time.Millisecond
)

// Normalize returns a copy with zero-valued knobs replaced by defaults.
func (c PipelineConfig) Normalize() PipelineConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultCallTimeout
	}
	if c.SeedDepth <= 0 {
		c.SeedDepth = DefaultSeedDepth
	}
	if c.SourceURLCount <= 0 {
		c.SourceURLCount = DefaultSourceURLCount
	}
	if c.HarvestLimit <= 0 {
		c.HarvestLimit = DefaultHarvestLimit
	}
	if c.CandidateCap <= 0 {
		c.CandidateCap = DefaultCandidateCap
	}
	if c.EvalBatchSize <= 0 {
		c.EvalBatchSize = DefaultEvalBatchSize
	}
	if c.OverlapThreshold <= 0 {
		c.OverlapThreshold = DefaultOverlapThreshold
	}
	if c.MaxSupporting <= 0 {
		c.MaxSupporting = DefaultMaxSupporting
	}
	if c.BackfillMin <= 0 {
		c.BackfillMin = DefaultBackfillMin
	}
	if c.WallClockBudget <= 0 {
		c.WallClockBudget = DefaultWallClockBudget
	}
	if c.ReportingCap <= 0 {
		c.ReportingCap = DefaultReportingCap
	}
	if c.ScorePolicy == "" {
		c.ScorePolicy = "jaccard"
	}
	if c.CallInterval <= 0 {
		c.CallInterval = DefaultCallInterval
	}
	return c
}

// CacheConfig holds settings for the provider response cache.
type CacheConfig struct {
	// Enabled turns the SQLite response cache on. Off by default: single
	// runs rarely repeat calls, batch runs benefit most.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file (default "overlap-cache.db").
	Path string `json:"path" yaml:"path"`

	// TTL is how long cached responses stay valid (default 24h).
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// BatchConfig holds settings for CSV batch processing.
type BatchConfig struct {
	// Workers is the worker pool size for concurrent seed phrases
	// (default 10).
	Workers int `json:"workers" yaml:"workers"`

	// MaxPhrases caps how many input rows are processed; 0 means all.
	MaxPhrases int `json:"max_phrases" yaml:"max_phrases"`

	// MetricsPort, when non-zero, exposes Prometheus metrics on
	// :port/metrics for the duration of the batch run.
	MetricsPort int `json:"metrics_port" yaml:"metrics_port"`
}
