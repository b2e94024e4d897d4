// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch runs overlap discovery for many seed phrases read from a
// CSV file, fanning the runs out over a bounded worker pool.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/pdiddy/overlap-engine/internal/pipeline"
)

// phraseColumns are the header names recognized as the seed-phrase column,
// checked in order.
var phraseColumns = []string{"keyword", "keywords", "seed_keyword", "phrase", "term", "query"}

// ReadPhrases loads seed phrases from a CSV file. The phrase column is
// found by header name; a file without a recognized header is treated as
// headerless with phrases in the first column. Blank rows and duplicate
// phrases are dropped. max caps the number of phrases; 0 means all.
func ReadPhrases(path string, max int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty input file", path)
	}

	col, start := sniffColumn(rows[0])

	var phrases []string
	seen := make(map[string]struct{})
	for _, row := range rows[start:] {
		if col >= len(row) {
			continue
		}
		phrase := strings.TrimSpace(row[col])
		if phrase == "" {
			continue
		}
		key := strings.ToLower(phrase)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		phrases = append(phrases, phrase)
		if max > 0 && len(phrases) >= max {
			break
		}
	}
	if len(phrases) == 0 {
		return nil, fmt.Errorf("%s: no seed phrases found", path)
	}
	return phrases, nil
}

// sniffColumn locates the phrase column in a header row. It returns the
// column index and the first data row index (1 when a header was found,
// 0 when the file is headerless).
func sniffColumn(header []string) (col, start int) {
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for _, want := range phraseColumns {
			if name == want {
				return i, 1
			}
		}
	}
	return 0, 0
}

// Summary aggregates a batch run for the JSON report.
type Summary struct {
	Total           int       `json:"total"`
	Succeeded       int       `json:"succeeded"`
	Failed          int       `json:"failed"`
	Partial         int       `json:"partial"`
	SupportingTotal int       `json:"supporting_total"`
	Elapsed         string    `json:"elapsed"`
	Timestamp       time.Time `json:"timestamp"`
}

// Runner executes one pipeline run per seed phrase on a worker pool.
type Runner struct {
	pipeline *pipeline.Pipeline
	workers  int
}

// NewRunner builds a Runner with the given pool size.
func NewRunner(p *pipeline.Pipeline, workers int) *Runner {
	if workers <= 0 {
		workers = 10
	}
	return &Runner{pipeline: p, workers: workers}
}

// Run processes all phrases and returns one outcome per phrase, in input
// order. Individual failures do not stop the batch. One progress line per
// finished phrase goes to w.
func (r *Runner) Run(ctx context.Context, phrases []string, w io.Writer) ([]pipeline.Outcome, Summary, error) {
	start := time.Now()

	pool, err := ants.NewPool(r.workers)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	outcomes := make([]pipeline.Outcome, len(phrases))
	var mu sync.Mutex // guards w
	var wg sync.WaitGroup

	for i, phrase := range phrases {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			out := r.pipeline.Run(ctx, phrase, io.Discard)
			outcomes[i] = out

			mu.Lock()
			defer mu.Unlock()
			switch {
			case out.Failed:
				fmt.Fprintf(w, "[%d/%d] %q: failed (%s)\n", i+1, len(phrases), phrase, out.Reason)
			case out.Partial:
				fmt.Fprintf(w, "[%d/%d] %q: %d supporting (partial)\n", i+1, len(phrases), phrase, len(out.Supporting))
			default:
				fmt.Fprintf(w, "[%d/%d] %q: %d supporting\n", i+1, len(phrases), phrase, len(out.Supporting))
			}
		})
		if submitErr != nil {
			wg.Done()
			outcomes[i] = notRunOutcome(phrase)
			fmt.Fprintf(w, "[%d/%d] %q: submit failed: %v\n", i+1, len(phrases), phrase, submitErr)
		}
	}
	wg.Wait()

	return outcomes, summarize(outcomes, time.Since(start)), nil
}

// notRunOutcome records a seed the pool rejected before the pipeline ever
// saw it. The seed itself may be perfectly valid, so the reason is distinct
// from invalid-input.
func notRunOutcome(phrase string) pipeline.Outcome {
	return pipeline.Outcome{
		SeedPhrase: phrase,
		Failed:     true,
		Reason:     pipeline.ReasonNotRun,
	}
}

func summarize(outcomes []pipeline.Outcome, elapsed time.Duration) Summary {
	s := Summary{
		Total:     len(outcomes),
		Elapsed:   elapsed.Round(time.Millisecond).String(),
		Timestamp: time.Now(),
	}
	for _, out := range outcomes {
		if out.Failed {
			s.Failed++
			continue
		}
		s.Succeeded++
		if out.Partial {
			s.Partial++
		}
		s.SupportingTotal += len(out.Supporting)
	}
	return s
}
