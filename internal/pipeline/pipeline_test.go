package pipeline

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/overlap-engine/internal/serp"
	"github.com/pdiddy/overlap-engine/pkg/types"
)

// --- fake provider clients ---

type fakeSERP struct {
	mu      sync.Mutex
	results map[string][]string
	errs    map[string]error
	delay   time.Duration
	calls   []string
}

func (f *fakeSERP) TopResults(ctx context.Context, phrase string, depth int) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, phrase)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[phrase]; err != nil {
		return nil, err
	}
	urls := f.results[phrase]
	if len(urls) > depth {
		urls = urls[:depth]
	}
	return urls, nil
}

func (f *fakeSERP) called(phrase string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == phrase {
			return true
		}
	}
	return false
}

type fakeRankings struct {
	mu    sync.Mutex
	byURL map[string][]types.RankedPhrase
	errs  map[string]error
	delay time.Duration
	calls []string
}

func (f *fakeRankings) RankedPhrases(ctx context.Context, target string, limit int) ([]types.RankedPhrase, error) {
	f.mu.Lock()
	f.calls = append(f.calls, target)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[target]; err != nil {
		return nil, err
	}
	return f.byURL[target], nil
}

// overlapWriter is an unsynchronized progress sink that records whether two
// Write calls ever ran at the same time.
type overlapWriter struct {
	buf     strings.Builder
	inUse   atomic.Int32
	overlap atomic.Bool
}

func (w *overlapWriter) Write(p []byte) (int, error) {
	if w.inUse.Add(1) > 1 {
		w.overlap.Store(true)
	}
	time.Sleep(time.Millisecond)
	defer w.inUse.Add(-1)
	return w.buf.Write(p)
}

func testCfg() types.PipelineConfig {
	return types.PipelineConfig{
		HTTPConfig:       types.HTTPConfig{Timeout: time.Second, UserAgent: "test/0.1"},
		SeedDepth:        10,
		SourceURLCount:   2,
		HarvestLimit:     50,
		CandidateCap:     20,
		EvalBatchSize:    2,
		OverlapThreshold: 40,
		MaxSupporting:    4,
		WallClockBudget:  10 * time.Second,
		ReportingCap:     20,
		CallInterval:     time.Millisecond,
	}
}

// urls builds n distinct result URLs with the given host prefix.
func urls(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "https://" + prefix + ".example.com/page-" + string(rune('a'+i))
	}
	return out
}

func newPipeline(t *testing.T, s *fakeSERP, r *fakeRankings, cfg types.PipelineConfig) *Pipeline {
	t.Helper()
	p, err := New(s, r, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// ranked builds a single-source harvest fixture where every phrase has a
// distinct volume so aggregation order is deterministic.
func ranked(phrases ...string) []types.RankedPhrase {
	out := make([]types.RankedPhrase, len(phrases))
	for i, p := range phrases {
		out[i] = types.RankedPhrase{Text: p, Volume: 1000 - i*10, CPC: 1.0, Position: 3}
	}
	return out
}

// --- terminal failures ---

func TestRunInvalidInput(t *testing.T) {
	p := newPipeline(t, &fakeSERP{}, &fakeRankings{}, testCfg())

	for _, seed := range []string{"", "   ", "\t\n"} {
		out := p.Run(context.Background(), seed, io.Discard)
		if !out.Failed || out.Reason != ReasonInvalidInput {
			t.Errorf("Run(%q): failed=%v reason=%q, want invalid-input failure", seed, out.Failed, out.Reason)
		}
	}
}

func TestRunNoSearchResults(t *testing.T) {
	tests := []struct {
		name string
		serp *fakeSERP
	}{
		{"seed call fails", &fakeSERP{errs: map[string]error{
			"guitar lessons": &serp.APIError{Class: serp.ClassUpstream, Status: 500, Message: "boom"},
		}}},
		{"seed call empty", &fakeSERP{results: map[string][]string{
			"guitar lessons": {},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, tt.serp, &fakeRankings{}, testCfg())
			out := p.Run(context.Background(), "guitar lessons", io.Discard)
			if !out.Failed || out.Reason != ReasonNoSearchResults {
				t.Fatalf("failed=%v reason=%q, want no-search-results failure", out.Failed, out.Reason)
			}
		})
	}
}

func TestRunNoCandidates(t *testing.T) {
	seedURLs := urls("seed", 10)
	s := &fakeSERP{results: map[string][]string{"guitar lessons": seedURLs}}
	r := &fakeRankings{errs: map[string]error{
		seedURLs[0]: &serp.APIError{Class: serp.ClassUpstream, Status: 502, Message: "bad gateway"},
		seedURLs[1]: &serp.APIError{Class: serp.ClassTimeout, Message: "deadline"},
	}}

	p := newPipeline(t, s, r, testCfg())
	out := p.Run(context.Background(), "guitar lessons", io.Discard)
	if !out.Failed || out.Reason != ReasonNoCandidates {
		t.Fatalf("failed=%v reason=%q, want no-candidates failure", out.Failed, out.Reason)
	}
	if len(out.SeedResults) != 10 {
		t.Errorf("SeedResults = %d, want 10 even on failure", len(out.SeedResults))
	}
}

// --- degradation ---

func TestRunToleratesHarvestPartialFailure(t *testing.T) {
	seedURLs := urls("seed", 5)
	s := &fakeSERP{results: map[string][]string{
		"guitar lessons":  seedURLs,
		"learn guitar":    seedURLs, // identical set, 100% overlap
		"guitar teachers": seedURLs,
	}}
	r := &fakeRankings{
		byURL: map[string][]types.RankedPhrase{
			seedURLs[0]: ranked("learn guitar", "guitar teachers"),
		},
		errs: map[string]error{
			seedURLs[1]: &serp.APIError{Class: serp.ClassUpstream, Status: 500, Message: "boom"},
		},
	}

	p := newPipeline(t, s, r, testCfg())
	out := p.Run(context.Background(), "guitar lessons", io.Discard)
	if out.Failed {
		t.Fatalf("run failed: %s", out.Reason)
	}
	if len(out.Supporting) != 2 {
		t.Fatalf("supporting = %d, want 2 from the surviving source", len(out.Supporting))
	}
}

func TestRunSkipsEmptyCandidateResultSets(t *testing.T) {
	seedURLs := urls("seed", 5)
	s := &fakeSERP{results: map[string][]string{
		"guitar lessons": seedURLs,
		"ghost phrase":   {},
		"learn guitar":   seedURLs,
	}}
	r := &fakeRankings{byURL: map[string][]types.RankedPhrase{
		seedURLs[0]: ranked("ghost phrase", "learn guitar"),
	}}

	p := newPipeline(t, s, r, testCfg())
	out := p.Run(context.Background(), "guitar lessons", io.Discard)
	if out.Failed {
		t.Fatalf("run failed: %s", out.Reason)
	}
	if out.Evaluated != 1 {
		t.Errorf("Evaluated = %d, want 1 (empty result set is not charged)", out.Evaluated)
	}
	if len(out.Supporting) != 1 || out.Supporting[0].Text != "learn guitar" {
		t.Errorf("supporting = %+v, want only the phrase with results", out.Supporting)
	}
}

func TestRunSerializesWarningOutput(t *testing.T) {
	seedURLs := urls("seed", 10)
	results := map[string][]string{"guitar lessons": seedURLs}
	phrases := []string{"c1", "c2", "c3", "c4", "c5", "c6"}
	serpErrs := map[string]error{}
	for _, ph := range phrases {
		serpErrs[ph] = &serp.APIError{Class: serp.ClassUpstream, Status: 500, Message: "boom"}
	}
	s := &fakeSERP{results: results, errs: serpErrs}
	rankErrs := map[string]error{}
	for _, u := range seedURLs[1:] {
		rankErrs[u] = &serp.APIError{Class: serp.ClassUpstream, Status: 500, Message: "boom"}
	}
	r := &fakeRankings{
		byURL: map[string][]types.RankedPhrase{seedURLs[0]: ranked(phrases...)},
		errs:  rankErrs,
	}

	cfg := testCfg()
	cfg.SourceURLCount = 10
	cfg.EvalBatchSize = 3
	p := newPipeline(t, s, r, cfg)

	w := &overlapWriter{}
	out := p.Run(context.Background(), "guitar lessons", w)
	if out.Failed {
		t.Fatalf("run failed: %s", out.Reason)
	}
	if w.overlap.Load() {
		t.Fatal("progress writer saw overlapping Write calls")
	}
	got := w.buf.String()
	if n := strings.Count(got, "harvest failed"); n != 9 {
		t.Errorf("harvest warnings = %d, want 9:\n%s", n, got)
	}
	if n := strings.Count(got, "evaluation failed"); n != len(phrases) {
		t.Errorf("evaluation warnings = %d, want %d:\n%s", n, len(phrases), got)
	}
}

// --- scoring behavior through the full run ---

func TestRunScorePolicyChangesVerdict(t *testing.T) {
	// Candidate shares 5 of its 10 URLs with the 10-URL seed set:
	// min-based overlap is 50%, Jaccard is 5/15 = 33%.
	seedURLs := urls("seed", 10)
	candURLs := append([]string{}, seedURLs[:5]...)
	candURLs = append(candURLs, urls("other", 5)...)

	s := &fakeSERP{results: map[string][]string{
		"guitar lessons": seedURLs,
		"guitar chords":  candURLs,
	}}
	r := &fakeRankings{byURL: map[string][]types.RankedPhrase{
		seedURLs[0]: ranked("guitar chords"),
	}}

	for _, tt := range []struct {
		policy string
		want   int
	}{
		{"jaccard", 0},
		{"min", 1},
	} {
		t.Run(tt.policy, func(t *testing.T) {
			cfg := testCfg()
			cfg.ScorePolicy = tt.policy
			p := newPipeline(t, s, r, cfg)
			out := p.Run(context.Background(), "guitar lessons", io.Discard)
			if out.Failed {
				t.Fatalf("run failed: %s", out.Reason)
			}
			if len(out.Supporting) != tt.want {
				t.Fatalf("supporting = %d, want %d under %s", len(out.Supporting), tt.want, tt.policy)
			}
			if tt.want == 1 {
				sp := out.Supporting[0]
				if sp.OverlapPct != 50 {
					t.Errorf("OverlapPct = %d, want 50", sp.OverlapPct)
				}
				if len(sp.MatchingURLs) != 5 || sp.TotalSeedURLs != 10 {
					t.Errorf("MatchingURLs = %d TotalSeedURLs = %d, want 5 and 10", len(sp.MatchingURLs), sp.TotalSeedURLs)
				}
			}
		})
	}
}

// --- short circuit ---

func TestRunShortCircuitsAtQuota(t *testing.T) {
	seedURLs := urls("seed", 5)
	results := map[string][]string{"guitar lessons": seedURLs}
	phrases := []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8"}
	for _, ph := range phrases {
		results[ph] = seedURLs // every candidate fully overlaps
	}
	s := &fakeSERP{results: results}
	r := &fakeRankings{byURL: map[string][]types.RankedPhrase{
		seedURLs[0]: ranked(phrases...),
	}}

	p := newPipeline(t, s, r, testCfg()) // batch size 2, quota 4
	out := p.Run(context.Background(), "guitar lessons", io.Discard)
	if out.Failed {
		t.Fatalf("run failed: %s", out.Reason)
	}
	if len(out.Supporting) != 4 {
		t.Fatalf("supporting = %d, want 4", len(out.Supporting))
	}
	for _, ph := range []string{"c5", "c6", "c7", "c8"} {
		if s.called(ph) {
			t.Errorf("candidate %q was evaluated after the quota filled", ph)
		}
	}
	// Output follows candidate rank order, not completion order.
	for i, want := range []string{"c1", "c2", "c3", "c4"} {
		if out.Supporting[i].Text != want {
			t.Errorf("Supporting[%d] = %q, want %q", i, out.Supporting[i].Text, want)
		}
	}
}

// --- wall-clock budget ---

func TestRunPartialOnBudgetExhaustion(t *testing.T) {
	seedURLs := urls("seed", 5)
	results := map[string][]string{"guitar lessons": seedURLs}
	phrases := []string{"c1", "c2", "c3", "c4", "c5", "c6"}
	for _, ph := range phrases {
		results[ph] = urls("miss", 5) // never qualifies, so evaluation keeps going
	}
	s := &fakeSERP{results: results, delay: 60 * time.Millisecond}
	r := &fakeRankings{byURL: map[string][]types.RankedPhrase{
		seedURLs[0]: ranked(phrases...),
	}}

	cfg := testCfg()
	cfg.EvalBatchSize = 1
	cfg.WallClockBudget = 220 * time.Millisecond
	p := newPipeline(t, s, r, cfg)

	var progress strings.Builder
	out := p.Run(context.Background(), "guitar lessons", &progress)
	if out.Failed {
		t.Fatalf("run failed: %s", out.Reason)
	}
	if !out.Partial {
		t.Fatal("Partial = false, want true when the budget expires mid-evaluation")
	}
	if out.Evaluated == 0 || out.Evaluated >= len(phrases) {
		t.Errorf("Evaluated = %d, want some but not all of %d", out.Evaluated, len(phrases))
	}
	if !strings.Contains(progress.String(), "budget exhausted") {
		t.Errorf("progress output missing budget message:\n%s", progress.String())
	}
}

func TestRunPartialWhenBudgetExpiresDuringHarvest(t *testing.T) {
	seedURLs := urls("seed", 2)
	s := &fakeSERP{results: map[string][]string{"guitar lessons": seedURLs}}
	r := &fakeRankings{delay: 200 * time.Millisecond}

	cfg := testCfg()
	cfg.WallClockBudget = 50 * time.Millisecond
	p := newPipeline(t, s, r, cfg)

	var progress strings.Builder
	out := p.Run(context.Background(), "guitar lessons", &progress)
	if out.Failed {
		t.Fatalf("failed=true reason=%q, want graceful partial outcome", out.Reason)
	}
	if !out.Partial {
		t.Fatal("Partial = false, want true when the budget expires during harvest")
	}
	if len(out.SeedResults) != 2 {
		t.Errorf("SeedResults = %d, want the seed phase preserved", len(out.SeedResults))
	}
	if len(out.Supporting) != 0 {
		t.Errorf("Supporting = %d, want none", len(out.Supporting))
	}
	if !strings.Contains(progress.String(), "budget exhausted during harvest") {
		t.Errorf("progress missing harvest budget message:\n%s", progress.String())
	}
}

// --- backfill ---

func TestRunBackfill(t *testing.T) {
	seedURLs := urls("seed", 5)
	results := map[string][]string{"guitar lessons": seedURLs}
	phrases := []string{"c1", "c2", "c3", "c4", "c5", "c6"}
	for _, ph := range phrases {
		results[ph] = urls("miss", 5)
	}
	results["c2"] = seedURLs // only c2 qualifies
	s := &fakeSERP{results: results}
	r := &fakeRankings{byURL: map[string][]types.RankedPhrase{
		seedURLs[0]: ranked(phrases...),
	}}

	cfg := testCfg()
	cfg.Backfill = true
	cfg.BackfillMin = 4
	p := newPipeline(t, s, r, cfg)
	out := p.Run(context.Background(), "guitar lessons", io.Discard)
	if out.Failed {
		t.Fatalf("run failed: %s", out.Reason)
	}
	if len(out.Supporting) != 4 {
		t.Fatalf("supporting = %d, want 4 after backfill", len(out.Supporting))
	}
	if out.Supporting[0].Text != "c2" || out.Supporting[0].Backfilled {
		t.Errorf("Supporting[0] = %+v, want qualifying c2 first", out.Supporting[0])
	}
	// Backfilled entries are flagged and carry no overlap confidence.
	for _, sp := range out.Supporting[1:] {
		if !sp.Backfilled {
			t.Errorf("%q: Backfilled = false, want true", sp.Text)
		}
		if sp.OverlapPct != 0 {
			t.Errorf("%q: OverlapPct = %d, want 0", sp.Text, sp.OverlapPct)
		}
	}
	// Backfill picks the highest-ranked leftovers.
	if out.Supporting[1].Text != "c1" || out.Supporting[2].Text != "c3" {
		t.Errorf("backfill order = %q, %q; want c1, c3", out.Supporting[1].Text, out.Supporting[2].Text)
	}
}

func TestRunNoBackfillByDefault(t *testing.T) {
	seedURLs := urls("seed", 5)
	results := map[string][]string{"guitar lessons": seedURLs}
	for _, ph := range []string{"c1", "c2"} {
		results[ph] = urls("miss", 5)
	}
	s := &fakeSERP{results: results}
	r := &fakeRankings{byURL: map[string][]types.RankedPhrase{
		seedURLs[0]: ranked("c1", "c2"),
	}}

	p := newPipeline(t, s, r, testCfg())
	out := p.Run(context.Background(), "guitar lessons", io.Discard)
	if out.Failed {
		t.Fatalf("run failed: %s", out.Reason)
	}
	if len(out.Supporting) != 0 {
		t.Errorf("supporting = %d, want 0 with backfill off", len(out.Supporting))
	}
}

// --- outcome shape ---

func TestRunOutcomeFields(t *testing.T) {
	seedURLs := []string{
		"https://www.Example.com/a/",
		"http://example.com/b?utm=x",
	}
	s := &fakeSERP{results: map[string][]string{
		"guitar lessons": seedURLs,
		"learn guitar":   seedURLs,
	}}
	r := &fakeRankings{byURL: map[string][]types.RankedPhrase{
		seedURLs[0]: ranked("learn guitar"),
	}}

	p := newPipeline(t, s, r, testCfg())
	out := p.Run(context.Background(), "  guitar lessons  ", io.Discard)
	if out.Failed {
		t.Fatalf("run failed: %s", out.Reason)
	}
	if out.SeedPhrase != "guitar lessons" {
		t.Errorf("SeedPhrase = %q, want trimmed input", out.SeedPhrase)
	}
	if out.RunID == "" {
		t.Error("RunID is empty")
	}
	want := []string{"example.com/a", "example.com/b"}
	if len(out.SeedResults) != 2 || out.SeedResults[0] != want[0] || out.SeedResults[1] != want[1] {
		t.Errorf("SeedResults = %v, want %v", out.SeedResults, want)
	}
	if out.Elapsed <= 0 {
		t.Error("Elapsed not recorded")
	}
}
