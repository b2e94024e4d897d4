// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pdiddy/overlap-engine/internal/pipeline"
)

// WriteResults saves one CSV row per seed phrase. Supporting phrases go in
// numbered columns sized to the widest outcome, rendered "phrase (NN%)",
// backfilled entries "phrase (backfill)".
func WriteResults(path string, outcomes []pipeline.Outcome) error {
	width := 0
	for _, out := range outcomes {
		if len(out.Supporting) > width {
			width = len(out.Supporting)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"seed_phrase", "status", "partial", "evaluated", "supporting_count"}
	for i := 1; i <= width; i++ {
		header = append(header, fmt.Sprintf("supporting_phrase_%d", i))
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing results header: %w", err)
	}

	for _, out := range outcomes {
		status := "success"
		if out.Failed {
			status = string(out.Reason)
		}
		row := []string{
			out.SeedPhrase,
			status,
			strconv.FormatBool(out.Partial),
			strconv.Itoa(out.Evaluated),
			strconv.Itoa(len(out.Supporting)),
		}
		for i := 0; i < width; i++ {
			if i >= len(out.Supporting) {
				row = append(row, "")
				continue
			}
			sp := out.Supporting[i]
			if sp.Backfilled {
				row = append(row, fmt.Sprintf("%s (backfill)", sp.Text))
			} else {
				row = append(row, fmt.Sprintf("%s (%d%%)", sp.Text, sp.OverlapPct))
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing results row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing results: %w", err)
	}
	return nil
}

// WriteSummary saves the batch summary as indented JSON.
func WriteSummary(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
