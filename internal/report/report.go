// Package report writes the minimal report.md + summary.json pair for a
// completed experiment's Comparison Engine (C6) summary. Deliberately
// thin: no HTML rendering, no templating engine — spec.md's Non-goals
// exclude the HTML report generator, and the original itself backs its
// FileWriter with nothing but std::fs.
//
// Grounded on original_source/src/report/mod.rs's FileWriter/ReportWriter
// trait and report/markdown.rs's summary table shape.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/LuuuXXX/crater-ohos/internal/comparison"
)

// jsonSummary is summary.json's shape: classification name -> count,
// plus the grand total, generated_at stamp and experiment name.
type jsonSummary struct {
	Experiment  string         `json:"experiment"`
	GeneratedAt string         `json:"generated_at"`
	Total       int            `json:"total"`
	Counts      map[string]int `json:"counts"`
}

// Write renders report.md and summary.json for experiment under dir,
// creating dir if needed. now is passed in rather than taken from
// time.Now() so callers can stamp generated_at deterministically in tests.
func Write(dir, experiment string, summary comparison.Summary, now time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create %s: %w", dir, err)
	}

	if err := writeJSON(dir, experiment, summary, now); err != nil {
		return err
	}
	if err := writeMarkdown(dir, experiment, summary, now); err != nil {
		return err
	}
	return nil
}

func writeJSON(dir, experiment string, summary comparison.Summary, now time.Time) error {
	counts := make(map[string]int, len(summary.Counts))
	for c, n := range summary.Counts {
		counts[string(c)] = n
	}
	js := jsonSummary{
		Experiment:  experiment,
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Total:       summary.Total,
		Counts:      counts,
	}
	b, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal summary.json: %w", err)
	}
	path := filepath.Join(dir, "summary.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

func writeMarkdown(dir, experiment string, summary comparison.Summary, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Report: %s\n\n", experiment)
	fmt.Fprintf(&b, "Generated: %s\n\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Total packages compared: %d\n\n", summary.Total)

	rows := summary.ShowInSummary()
	if len(rows) == 0 {
		b.WriteString("No regressions or fixes detected.\n")
	} else {
		b.WriteString("| Classification | Count |\n")
		b.WriteString("| --- | --- |\n")
		for _, row := range rows {
			fmt.Fprintf(&b, "| %s | %d |\n", row.Classification, row.Count)
		}
	}
	b.WriteString("\n## All classifications\n\n")

	allKeys := make([]string, 0, len(summary.Counts))
	for c := range summary.Counts {
		allKeys = append(allKeys, string(c))
	}
	sort.Strings(allKeys)
	b.WriteString("| Classification | Count |\n")
	b.WriteString("| --- | --- |\n")
	for _, k := range allKeys {
		fmt.Fprintf(&b, "| %s | %d |\n", k, summary.Counts[comparison.Classification(k)])
	}

	path := filepath.Join(dir, "report.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
