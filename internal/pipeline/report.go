// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/overlap-engine/pkg/types"
)

// ReportFile is the on-disk representation of a discovery run. A saved run
// can be reloaded and re-rendered later without re-querying the API.
type ReportFile struct {
	Seed       string                   `yaml:"seed"`
	Config     ReportConfig             `yaml:"config"`
	Seeds      []string                 `yaml:"seed_results"`
	Candidates []types.CandidatePhrase  `yaml:"candidates,omitempty"`
	Supporting []types.SupportingPhrase `yaml:"supporting,omitempty"`
	Summary    ReportSummary            `yaml:"summary"`
}

// ReportConfig stores the knobs that produced the results.
type ReportConfig struct {
	SeedDepth        int    `yaml:"seed_depth"`
	SourceURLCount   int    `yaml:"source_url_count"`
	OverlapThreshold int    `yaml:"overlap_threshold"`
	MaxSupporting    int    `yaml:"max_supporting"`
	ScorePolicy      string `yaml:"score_policy"`
	Backfill         bool   `yaml:"backfill"`
}

// ReportSummary stores run statistics and a timestamp.
type ReportSummary struct {
	RunID      string    `yaml:"run_id"`
	Evaluated  int       `yaml:"evaluated"`
	Supporting int       `yaml:"supporting"`
	Partial    bool      `yaml:"partial"`
	Elapsed    string    `yaml:"elapsed"`
	Timestamp  time.Time `yaml:"timestamp"`
}

// WriteReport saves a run's outcome and configuration to a YAML file.
func WriteReport(path string, out Outcome, cfg types.PipelineConfig) error {
	rf := ReportFile{
		Seed: out.SeedPhrase,
		Config: ReportConfig{
			SeedDepth:        cfg.SeedDepth,
			SourceURLCount:   cfg.SourceURLCount,
			OverlapThreshold: cfg.OverlapThreshold,
			MaxSupporting:    cfg.MaxSupporting,
			ScorePolicy:      cfg.ScorePolicy,
			Backfill:         cfg.Backfill,
		},
		Seeds:      out.SeedResults,
		Candidates: out.Candidates,
		Supporting: out.Supporting,
		Summary: ReportSummary{
			RunID:      out.RunID,
			Evaluated:  out.Evaluated,
			Supporting: len(out.Supporting),
			Partial:    out.Partial,
			Elapsed:    out.Elapsed.Round(time.Millisecond).String(),
			Timestamp:  time.Now(),
		},
	}

	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling report file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadReport loads a previously saved report file from disk.
func ReadReport(path string) (*ReportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file: %w", err)
	}
	var rf ReportFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing report file: %w", err)
	}
	return &rf, nil
}

// FormatTable writes the outcome as a human-readable table to w.
func FormatTable(out Outcome, w io.Writer) {
	if out.Failed {
		fmt.Fprintf(w, "Run failed: %s\n", out.Reason)
		return
	}
	if len(out.Supporting) == 0 {
		fmt.Fprintln(w, "No supporting phrases found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-40s  %-8s  %-6s  %-8s  %s\n",
		"Rank", "Phrase", "Volume", "CPC", "Overlap", "Shared URLs")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for i, s := range out.Supporting {
		text := s.Text
		if len(text) > 40 {
			text = text[:37] + "..."
		}
		overlapCol := fmt.Sprintf("%d%%", s.OverlapPct)
		if s.Backfilled {
			overlapCol = "backfill"
		}
		fmt.Fprintf(w, "%-4d  %-40s  %-8d  %-6.2f  %-8s  %d/%d\n",
			i+1, text, s.Volume, s.CPC, overlapCol, len(s.MatchingURLs), s.TotalSeedURLs)
	}

	fmt.Fprintf(w, "\n%d supporting phrases (%d candidates evaluated", len(out.Supporting), out.Evaluated)
	if out.Partial {
		fmt.Fprint(w, ", budget exhausted")
	}
	fmt.Fprintln(w, ")")
}

// FormatJSON writes the outcome as indented JSON to w.
func FormatJSON(out Outcome, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteCSV saves the supporting phrases to a CSV file, one row per phrase.
func WriteCSV(path string, out Outcome) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{"phrase", "volume", "cpc", "overlap_pct", "matching_urls", "backfilled"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, s := range out.Supporting {
		row := []string{
			s.Text,
			strconv.Itoa(s.Volume),
			strconv.FormatFloat(s.CPC, 'f', 2, 64),
			strconv.Itoa(s.OverlapPct),
			strings.Join(s.MatchingURLs, " "),
			strconv.FormatBool(s.Backfilled),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
