package runner

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"
)

type Report struct {
	OK       bool           `json:"ok"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
	Tests    []ReportTest   `json:"tests"`
	Packages []ReportResult `json:"packages"`
}

type ReportTest struct {
	Package    string  `json:"package"`
	Name       string  `json:"name"`
	Outcome    Outcome `json:"outcome"`
	SkipReason string  `json:"skip_reason,omitempty"`
	ElapsedMS  int64   `json:"elapsed_ms"`
	Output     string  `json:"output,omitempty"`
}

type ReportResult struct {
	Package string  `json:"package"`
	Outcome Outcome `json:"outcome"`
}

// NewReport summarizes results. Output is only kept for failed tests.
func NewReport(results Results) Report {
	r := Report{
		OK:      results.OK(),
		Passed:  results.Passed(),
		Failed:  len(results.Failures),
		Skipped: len(results.Skips),
	}
	for _, t := range results.Tests {
		entry := ReportTest{
			Package:    t.TestID.Package,
			Name:       t.TestID.String(),
			Outcome:    t.Outcome,
			SkipReason: t.SkipReason,
			ElapsedMS:  t.Elapsed.Milliseconds(),
		}
		if t.Outcome == Failed {
			entry.Output = t.Output.String()
		}
		r.Tests = append(r.Tests, entry)
	}
	for _, p := range results.Packages {
		r.Packages = append(r.Packages, ReportResult{Package: p.Package, Outcome: p.Outcome})
	}
	return r
}

// WriteReport writes the report for results to path, replacing the file atomically so a
// reader never sees a partial report.
func WriteReport(path string, results Results) error {
	data, err := json.MarshalIndent(NewReport(results), "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(data, '\n'))); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
