// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives overlap discovery end to end: fetch the seed
// phrase's ranked results, harvest candidate phrases from the top ranking
// pages, aggregate and rank them, then score each candidate's own results
// against the seed's under a wall-clock budget.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/overlap-engine/internal/harvest"
	"github.com/pdiddy/overlap-engine/internal/metrics"
	"github.com/pdiddy/overlap-engine/internal/overlap"
	"github.com/pdiddy/overlap-engine/internal/serp"
	"github.com/pdiddy/overlap-engine/pkg/ratelimit"
	"github.com/pdiddy/overlap-engine/pkg/types"
)

// Reason identifies why a run ended in a Failed outcome.
type Reason string

const (
	// ReasonInvalidInput means the seed phrase was empty or blank. No
	// pipeline work is performed.
	ReasonInvalidInput Reason = "invalid-input"

	// ReasonNoSearchResults means the seed phrase returned no ranked
	// result URLs, so there is nothing to overlap against.
	ReasonNoSearchResults Reason = "no-search-results"

	// ReasonNoCandidates means harvesting and aggregation produced zero
	// usable candidate phrases.
	ReasonNoCandidates Reason = "no-candidates"

	// ReasonNotRun means the pipeline never executed for this seed, for
	// example because a batch scheduler could not take the task.
	ReasonNotRun Reason = "not-run"
)

// Outcome is the structured result of one run. Every terminal state maps
// here; the pipeline never lets an error escape its boundary.
type Outcome struct {
	// RunID identifies this invocation in logs and batch reports.
	RunID string `json:"run_id" yaml:"run_id"`

	// SeedPhrase is the trimmed input phrase.
	SeedPhrase string `json:"seed_phrase" yaml:"seed_phrase"`

	// Failed is true for terminal failures; Reason says which.
	Failed bool   `json:"failed" yaml:"failed"`
	Reason Reason `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Partial is true when the wall-clock budget ended the run before
	// the candidate pool was exhausted. Partial runs are successes.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`

	// SeedResults is the seed's normalized ResultSet in rank order.
	SeedResults []string `json:"seed_results,omitempty" yaml:"seed_results,omitempty"`

	// Candidates is the ranked candidate list, truncated to the
	// reporting cap.
	Candidates []types.CandidatePhrase `json:"candidates,omitempty" yaml:"candidates,omitempty"`

	// Supporting holds the qualifying phrases, plus backfilled entries
	// when that policy is on. Backfilled entries are flagged.
	Supporting []types.SupportingPhrase `json:"supporting,omitempty" yaml:"supporting,omitempty"`

	// Evaluated counts how many candidates were actually scored.
	Evaluated int `json:"evaluated" yaml:"evaluated"`

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Pipeline wires the two collaborator clients to the discovery flow.
type Pipeline struct {
	serp     serp.SERPClient
	rankings serp.RankingsClient
	cfg      types.PipelineConfig
	policy   overlap.Policy
	limiter  *ratelimit.Limiter
}

// New builds a Pipeline; zero-valued config knobs get reference defaults.
func New(serpClient serp.SERPClient, rankingsClient serp.RankingsClient, cfg types.PipelineConfig) (*Pipeline, error) {
	cfg = cfg.Normalize()
	policy, err := overlap.ParsePolicy(cfg.ScorePolicy)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		serp:     serpClient,
		rankings: rankingsClient,
		cfg:      cfg,
		policy:   policy,
		limiter:  ratelimit.New(cfg.CallInterval),
	}, nil
}

// Config returns the normalized configuration the pipeline runs with.
func (p *Pipeline) Config() types.PipelineConfig { return p.cfg }

// Run executes overlap discovery for seed. Progress lines go to w. The
// returned Outcome is structured in all cases, including failures.
func (p *Pipeline) Run(ctx context.Context, seed string, w io.Writer) Outcome {
	start := time.Now()
	out := Outcome{
		RunID:      uuid.NewString(),
		SeedPhrase: strings.TrimSpace(seed),
	}

	if out.SeedPhrase == "" {
		out.Failed = true
		out.Reason = ReasonInvalidInput
		out.Elapsed = time.Since(start)
		return out
	}

	// The wall-clock budget bounds the whole run. Once it expires no new
	// calls are issued; in-flight calls finish or hit their own timeout.
	ctx, cancel := context.WithTimeout(ctx, p.cfg.WallClockBudget)
	defer cancel()

	// FetchingSeed.
	fmt.Fprintf(w, "fetching top %d results for %q\n", p.cfg.SeedDepth, out.SeedPhrase)
	rawSeedURLs, err := p.topResults(ctx, out.SeedPhrase)
	if err != nil {
		fmt.Fprintf(w, "warning: seed search failed (%s): %v\n", serp.Classify(err), err)
	}
	out.SeedResults = overlap.NormalizeSet(rawSeedURLs)
	if len(out.SeedResults) == 0 {
		out.Failed = true
		out.Reason = ReasonNoSearchResults
		out.Elapsed = time.Since(start)
		return out
	}

	// HarvestingCandidates: the top seed URLs in parallel, each degrading
	// to an empty list on failure. The provider wants the raw URL as its
	// target, so harvesting uses provider URLs, not normalized ones.
	sources := rawSeedURLs
	if len(sources) > p.cfg.SourceURLCount {
		sources = sources[:p.cfg.SourceURLCount]
	}
	fmt.Fprintf(w, "harvesting ranking phrases from %d source urls\n", len(sources))
	lists := p.harvestAll(ctx, sources, w)

	// Aggregating.
	candidates := harvest.Aggregate(lists)

	// Budget expiry during harvest is not a failure: return an early Done
	// with whatever partial results exist.
	if ctx.Err() != nil {
		fmt.Fprintln(w, "wall-clock budget exhausted during harvest; returning partial results")
		out.Partial = true
		if len(candidates) > p.cfg.ReportingCap {
			candidates = candidates[:p.cfg.ReportingCap]
		}
		out.Candidates = candidates
		out.Elapsed = time.Since(start)
		metrics.PipelineRun(out.Elapsed, 0)
		return out
	}

	if len(candidates) == 0 {
		out.Failed = true
		out.Reason = ReasonNoCandidates
		out.Elapsed = time.Since(start)
		return out
	}
	fmt.Fprintf(w, "aggregated %d unique candidate phrases\n", len(candidates))

	// EvaluatingCandidates.
	prefix := candidates
	if len(prefix) > p.cfg.CandidateCap {
		prefix = prefix[:p.cfg.CandidateCap]
	}
	out.Supporting, out.Evaluated, out.Partial = p.evaluate(ctx, out.SeedResults, prefix, w)

	if p.cfg.Backfill && len(out.Supporting) < p.cfg.BackfillMin {
		out.Supporting = backfill(out.Supporting, candidates, p.cfg.BackfillMin, len(out.SeedResults))
	}

	if len(candidates) > p.cfg.ReportingCap {
		candidates = candidates[:p.cfg.ReportingCap]
	}
	out.Candidates = candidates
	out.Elapsed = time.Since(start)
	metrics.PipelineRun(out.Elapsed, len(out.Supporting))
	return out
}

// topResults calls the SERP client under the per-call timeout.
func (p *Pipeline) topResults(ctx context.Context, phrase string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return p.serp.TopResults(cctx, phrase, p.cfg.SeedDepth)
}

// harvestAll fans out one rankings call per source URL. Results come back
// in source order; a failed call degrades to an empty list rather than
// aborting the run. Goroutines never touch w: warnings are collected per
// slot and written only after the gather completes, so any io.Writer is
// safe to pass in.
func (p *Pipeline) harvestAll(ctx context.Context, sources []string, w io.Writer) [][]types.RankedPhrase {
	lists := make([][]types.RankedPhrase, len(sources))
	warnings := make([]string, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, p.cfg.Timeout)
			defer cancel()
			phrases, err := p.rankings.RankedPhrases(cctx, src, p.cfg.HarvestLimit)
			if err != nil {
				warnings[i] = fmt.Sprintf("warning: harvest failed for %s (%s): %v", src, serp.Classify(err), err)
				return nil
			}
			lists[i] = phrases
			return nil
		})
	}
	g.Wait()

	for _, warn := range warnings {
		if warn != "" {
			fmt.Fprintln(w, warn)
		}
	}
	return lists
}

// evalResult carries one candidate's verdict out of a batch. Warnings
// ride along here instead of being written from the worker goroutine.
type evalResult struct {
	supporting *types.SupportingPhrase
	evaluated  bool
	warning    string
}

// evaluate scores ranked candidates in fixed-size concurrent batches.
// Batches run sequentially; items inside a batch run concurrently and the
// verdicts are re-applied in candidate rank order. It stops as soon as the
// supporting quota is filled, and reports partial=true when the wall-clock
// budget expires with candidates still unexamined.
func (p *Pipeline) evaluate(ctx context.Context, seedResults []string, candidates []types.CandidatePhrase, w io.Writer) (supporting []types.SupportingPhrase, evaluated int, partial bool) {
	for batchStart := 0; batchStart < len(candidates); batchStart += p.cfg.EvalBatchSize {
		if len(supporting) >= p.cfg.MaxSupporting {
			return supporting, evaluated, false
		}
		if ctx.Err() != nil {
			fmt.Fprintf(w, "wall-clock budget exhausted after %d candidates; returning partial results\n", evaluated)
			return supporting, evaluated, true
		}

		end := batchStart + p.cfg.EvalBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[batchStart:end]
		verdicts := make([]evalResult, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, cand := range batch {
			g.Go(func() error {
				if err := p.limiter.Wait(gctx); err != nil {
					return nil
				}
				cctx, cancel := context.WithTimeout(gctx, p.cfg.Timeout)
				defer cancel()

				urls, err := p.serp.TopResults(cctx, cand.Text, p.cfg.SeedDepth)
				if err != nil {
					verdicts[i].warning = fmt.Sprintf("warning: evaluation failed for %q (%s): %v", cand.Text, serp.Classify(err), err)
					return nil
				}
				candResults := overlap.NormalizeSet(urls)
				if len(candResults) == 0 {
					// No result set: skip without charging the quota.
					return nil
				}

				verdicts[i] = evalResult{evaluated: true}
				pct := overlap.Score(seedResults, candResults, p.policy)
				if pct >= p.cfg.OverlapThreshold {
					verdicts[i].supporting = &types.SupportingPhrase{
						CandidatePhrase: cand,
						OverlapPct:      pct,
						MatchingURLs:    overlap.Intersect(seedResults, candResults),
						TotalSeedURLs:   len(seedResults),
					}
				}
				return nil
			})
		}
		g.Wait()

		// Re-apply verdicts in rank order so the output ordering never
		// depends on goroutine scheduling.
		for i, v := range verdicts {
			if v.warning != "" {
				fmt.Fprintln(w, v.warning)
			}
			if v.evaluated {
				evaluated++
			}
			if v.supporting == nil || len(supporting) >= p.cfg.MaxSupporting {
				continue
			}
			supporting = append(supporting, *v.supporting)
			fmt.Fprintf(w, "supporting: %q (%d%% overlap)\n", batch[i].Text, v.supporting.OverlapPct)
		}
	}
	return supporting, evaluated, false
}

// backfill pads the supporting list with top-ranked candidates that did
// not qualify, flagged and carrying zero overlap, until it reaches min or
// the candidate pool runs out. A deliberate low-confidence fallback.
func backfill(supporting []types.SupportingPhrase, candidates []types.CandidatePhrase, min, totalSeedURLs int) []types.SupportingPhrase {
	have := make(map[string]struct{}, len(supporting))
	for _, s := range supporting {
		have[s.Key()] = struct{}{}
	}

	for _, cand := range candidates {
		if len(supporting) >= min {
			break
		}
		if _, ok := have[cand.Key()]; ok {
			continue
		}
		supporting = append(supporting, types.SupportingPhrase{
			CandidatePhrase: cand,
			OverlapPct:      0,
			TotalSeedURLs:   totalSeedURLs,
			Backfilled:      true,
		})
		have[cand.Key()] = struct{}{}
	}
	return supporting
}
