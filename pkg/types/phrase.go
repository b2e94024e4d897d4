// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the overlap-engine pipeline.
package types

import "strings"

// RankedPhrase is a single phrase harvested from a source URL's ranking
// list, as returned by the rankings provider.
type RankedPhrase struct {
	// Text is the phrase as returned by the provider.
	Text string `json:"text" yaml:"text"`

	// Volume is the estimated monthly search volume. Never negative;
	// providers that omit it report 0.
	Volume int `json:"volume" yaml:"volume"`

	// CPC is the estimated cost-per-click in USD.
	CPC float64 `json:"cpc" yaml:"cpc"`

	// Position is the rank position (1-based) the source URL holds in
	// this phrase's own result set.
	Position int `json:"position" yaml:"position"`
}

// Key returns the identity key for dedup: lower-cased, trimmed text.
func (p RankedPhrase) Key() string {
	return strings.ToLower(strings.TrimSpace(p.Text))
}

// CandidatePhrase is a deduplicated, ranked phrase produced by aggregation.
// Immutable after the merge step.
type CandidatePhrase struct {
	Text     string  `json:"text" yaml:"text"`
	Volume   int     `json:"volume" yaml:"volume"`
	CPC      float64 `json:"cpc" yaml:"cpc"`
	Position int     `json:"position" yaml:"position"`
}

// Key returns the identity key: lower-cased, trimmed text.
func (p CandidatePhrase) Key() string {
	return strings.ToLower(strings.TrimSpace(p.Text))
}

// SupportingPhrase is a candidate whose own top results overlapped the
// seed's results, or a backfilled candidate when the backfill policy is on.
type SupportingPhrase struct {
	CandidatePhrase `yaml:",inline"`

	// OverlapPct is the overlap score, an integer 0-100. Backfilled
	// entries carry 0.
	OverlapPct int `json:"overlap_pct" yaml:"overlap_pct"`

	// MatchingURLs is the subset of the seed result set also present in
	// this phrase's result set, in seed rank order.
	MatchingURLs []string `json:"matching_urls,omitempty" yaml:"matching_urls,omitempty"`

	// TotalSeedURLs is the size of the seed result set the score was
	// computed against.
	TotalSeedURLs int `json:"total_seed_urls" yaml:"total_seed_urls"`

	// Backfilled marks low-confidence padding appended to reach a minimum
	// output count. Backfilled entries never blend silently with true
	// matches.
	Backfilled bool `json:"backfilled,omitempty" yaml:"backfilled,omitempty"`
}
