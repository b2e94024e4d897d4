// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"strconv"

	"github.com/pdiddy/overlap-engine/internal/metrics"
	"github.com/pdiddy/overlap-engine/internal/serp"
	"github.com/pdiddy/overlap-engine/pkg/types"
)

// SERPClient wraps a serp.SERPClient with response caching. Cache errors
// degrade to a live call; a stale or broken cache must never fail a run.
type SERPClient struct {
	Inner serp.SERPClient
	Store *Store
}

// TopResults returns cached results when present, otherwise calls the
// inner client and caches its answer.
func (c *SERPClient) TopResults(ctx context.Context, phrase string, depth int) ([]string, error) {
	key := Key("serp", phrase, strconv.Itoa(depth))

	var cached []string
	if ok, err := c.Store.Get(ctx, key, &cached); err == nil && ok {
		metrics.CacheHit()
		return cached, nil
	}
	metrics.CacheMiss()

	urls, err := c.Inner.TopResults(ctx, phrase, depth)
	if err != nil {
		return nil, err
	}
	_ = c.Store.Put(ctx, key, urls)
	return urls, nil
}

// RankingsClient wraps a serp.RankingsClient with response caching.
type RankingsClient struct {
	Inner serp.RankingsClient
	Store *Store
}

// RankedPhrases returns cached phrases when present, otherwise calls the
// inner client and caches its answer.
func (c *RankingsClient) RankedPhrases(ctx context.Context, url string, limit int) ([]types.RankedPhrase, error) {
	key := Key("rankings", url, strconv.Itoa(limit))

	var cached []types.RankedPhrase
	if ok, err := c.Store.Get(ctx, key, &cached); err == nil && ok {
		metrics.CacheHit()
		return cached, nil
	}
	metrics.CacheMiss()

	phrases, err := c.Inner.RankedPhrases(ctx, url, limit)
	if err != nil {
		return nil, err
	}
	_ = c.Store.Put(ctx, key, phrases)
	return phrases, nil
}

