// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest merges ranking phrases collected from multiple source
// URLs into a single deduplicated, ranked candidate list.
package harvest

import (
	"sort"
	"strings"

	"github.com/pdiddy/overlap-engine/pkg/types"
)

// topPositionWindow bounds the source rank positions eligible for
// aggregation. Phrases a source page ranks for below this window say
// little about the page's topic.
const topPositionWindow = 10

// Aggregate merges per-URL harvested phrase lists into one ranked
// candidate sequence. Phrases with blank text or a rank position outside
// [1, 10] are discarded before merging. Duplicates (lower-cased trimmed
// text) keep the instance with the strictly higher volume; ties keep the
// first seen. The result is ordered by volume descending, then CPC
// descending, then stable harvest order.
func Aggregate(lists [][]types.RankedPhrase) []types.CandidatePhrase {
	type slot struct {
		phrase types.RankedPhrase
		order  int // harvest order, the final tie-break
	}

	seen := make(map[string]int) // key → index in merged
	var merged []slot
	order := 0

	for _, list := range lists {
		for _, p := range list {
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			if p.Position < 1 || p.Position > topPositionWindow {
				continue
			}

			key := p.Key()
			if idx, ok := seen[key]; ok {
				if p.Volume > merged[idx].phrase.Volume {
					merged[idx].phrase = p
				}
				continue
			}
			seen[key] = len(merged)
			merged = append(merged, slot{phrase: p, order: order})
			order++
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].phrase, merged[j].phrase
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		if a.CPC != b.CPC {
			return a.CPC > b.CPC
		}
		return merged[i].order < merged[j].order
	})

	candidates := make([]types.CandidatePhrase, len(merged))
	for i, s := range merged {
		candidates[i] = types.CandidatePhrase{
			Text:     s.phrase.Text,
			Volume:   s.phrase.Volume,
			CPC:      s.phrase.CPC,
			Position: s.phrase.Position,
		}
	}
	return candidates
}
