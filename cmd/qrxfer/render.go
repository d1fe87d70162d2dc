package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pyropy/qrxfer/core/ingest"
	"github.com/pyropy/qrxfer/core/model"
	"github.com/pyropy/qrxfer/core/reconcile"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// maxListedGaps is the most gaps printed one per line.
const maxListedGaps = 10

// maxListedMissing caps the missing indices printed after a failed rebuild.
const maxListedMissing = 50

var rule = strings.Repeat("=", 60)

func validFormat(format string) bool {
	return format == formatText || format == formatJSON || format == formatYAML
}

type SourceSummary struct {
	Source  string   `json:"source" yaml:"source"`
	Records int      `json:"records" yaml:"records"`
	Skipped int      `json:"skipped" yaml:"skipped"`
	Files   []string `json:"files" yaml:"files"`
}

type Diagnosis struct {
	Sources []SourceSummary   `json:"sources" yaml:"sources"`
	Report  *reconcile.Report `json:"report" yaml:"report"`
}

func newDiagnosis(results []*ingest.Result, report *reconcile.Report) *Diagnosis {
	d := &Diagnosis{Sources: []SourceSummary{}, Report: report}
	for _, r := range results {
		d.Sources = append(d.Sources, SourceSummary{
			Source:  r.SourceID,
			Records: len(r.Entries),
			Skipped: r.Skipped,
			Files:   r.FileNames(),
		})
	}

	return d
}

func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printDiagnosis(w io.Writer, results []*ingest.Result, report *reconcile.Report, filter string) {
	fmt.Fprintln(w, "QR chunk diagnostic")
	fmt.Fprintln(w, strings.Repeat("=", 19))
	fmt.Fprintln(w)

	for _, r := range results {
		fmt.Fprintf(w, "Source: %s\n", sourceLabel(r.SourceID))
		fmt.Fprintf(w, "   Chunks: %d\n", len(r.Entries))
		if r.Skipped > 0 {
			fmt.Fprintf(w, "   Skipped: %d unreadable text(s)\n", r.Skipped)
		}
		fmt.Fprintln(w, "   Files detected:")
		for _, name := range r.FileNames() {
			fmt.Fprintf(w, "      - %s\n", name)
		}
		fmt.Fprintln(w)
	}

	for _, c := range report.Conflicts {
		fmt.Fprintf(w, "CONFLICT at chunk %d:\n", c.Index)
		fmt.Fprintf(w, "   Existing: %s (from %s)\n", c.Winner.FileName, sourceLabel(c.Winner.Source))
		fmt.Fprintf(w, "   New: %s (from %s)\n", c.Challenger.FileName, sourceLabel(c.Challenger.Source))
	}
	if len(report.Conflicts) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "DIAGNOSTIC SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	if len(report.Files) == 0 {
		fmt.Fprintln(w, "   No valid chunks found!")
		fmt.Fprintln(w)
		return
	}

	if report.MultipleFiles {
		fmt.Fprintln(w, "   WARNING: Multiple files detected!")
		fmt.Fprintln(w)
	}

	for _, f := range report.Files {
		fmt.Fprintf(w, "   File: %s\n", f.FileName)
		fmt.Fprintf(w, "   Expected chunks: %d\n", f.TotalCount)
		fmt.Fprintf(w, "   Chunks found: %d\n", f.Present)
		fmt.Fprintf(w, "   Progress: %.1f%%\n", f.Progress)
		fmt.Fprintf(w, "   Found in: %s\n", joinSources(f.Sources))
		if f.Duplicates > 0 {
			fmt.Fprintf(w, "   Duplicates: %d\n", f.Duplicates)
		}
		fmt.Fprintln(w)

		printGaps(w, f.Gaps)

		if f.MissingAtStart {
			fmt.Fprintf(w, "   Missing chunks from beginning: 0 to %d\n", f.Gaps[0].End)
		}
		if f.MissingAtEnd {
			fmt.Fprintf(w, "   Missing chunks at end: %d to %d\n", f.Gaps[len(f.Gaps)-1].Start, f.TotalCount-1)
		}
		fmt.Fprintln(w)
	}

	printAnomalies(w, report)
	printRecommendations(w, report, filter)
}

func printGaps(w io.Writer, gaps []model.Gap) {
	if len(gaps) == 0 {
		fmt.Fprintln(w, "   No gaps detected")
		return
	}

	fmt.Fprintf(w, "   Missing ranges (%d gaps):\n", len(gaps))
	if len(gaps) > maxListedGaps {
		fmt.Fprintf(w, "      - Too many gaps to display (%d gaps total)\n", len(gaps))
		fmt.Fprintf(w, "      - First gap: %d to %d\n", gaps[0].Start, gaps[0].End)
		fmt.Fprintf(w, "      - Last gap: %d to %d\n", gaps[len(gaps)-1].Start, gaps[len(gaps)-1].End)
		return
	}

	for _, g := range gaps {
		if g.Size == 1 {
			fmt.Fprintf(w, "      - Chunk %d\n", g.Start)
			continue
		}
		fmt.Fprintf(w, "      - Chunks %d to %d (%d chunks)\n", g.Start, g.End, g.Size)
	}
}

func printAnomalies(w io.Writer, report *reconcile.Report) {
	for _, m := range report.TotalCountMismatches {
		fmt.Fprintf(w, "   Inconsistent total: %s chunk %d from %s declares %d, expected %d\n",
			m.FileName, m.Index, sourceLabel(m.Source), m.Declared, m.Authoritative)
	}
	for _, o := range report.OutOfRange {
		fmt.Fprintf(w, "   Ignored out of range: %s chunk %d from %s (total %d)\n",
			o.FileName, o.Index, sourceLabel(o.Source), o.Authoritative)
	}
	for _, p := range report.PayloadConflicts {
		fmt.Fprintf(w, "   Payload differs: %s chunk %d, kept %s from %s, ignored %s from %s\n",
			p.FileName, p.Index, p.WinnerFingerprint, sourceLabel(p.WinnerSource), p.ChallengerFingerprint, sourceLabel(p.ChallengerSource))
	}
	if len(report.TotalCountMismatches)+len(report.OutOfRange)+len(report.PayloadConflicts) > 0 {
		fmt.Fprintln(w)
	}
}

func printRecommendations(w io.Writer, report *reconcile.Report, filter string) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "RECOMMENDATIONS")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	if report.MultipleFiles {
		fmt.Fprintln(w, "PROBLEM DETECTED: Mixed QR codes from different files!")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "You scanned QR codes from multiple files:")
		for _, f := range report.Files {
			fmt.Fprintf(w, "   - %s (%d chunks)\n", f.FileName, f.Present)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "To extract only one file, use:")
		fmt.Fprintf(w, "   qrxfer reconstruct --filter %q <sources...>\n", report.Files[0].FileName)
		fmt.Fprintln(w)
		return
	}

	f := report.Files[0]
	if f.Complete {
		fmt.Fprintln(w, "All chunks present! File should reconstruct successfully.")
		fmt.Fprintln(w)
		if report.HasAnomalies() {
			fmt.Fprintln(w, "Anomalies were found above; if the rebuilt file is damaged, rescan the listed chunks.")
		}
		return
	}

	fmt.Fprintf(w, "File is %.1f%% complete (%d/%d chunks)\n", f.Progress, f.Present, f.TotalCount)
	fmt.Fprintf(w, "Missing: %d chunks\n\n", f.Missing)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "   1. Continue scanning the missing QR codes")
	fmt.Fprintln(w, "   2. Use --partial to write an incomplete file (it will be damaged)")
	if filter != "" {
		fmt.Fprintf(w, "   (filtered on %s)\n", filter)
	}
	fmt.Fprintln(w)
}

// printMissing lists missing indices, capped at maxListedMissing.
func printMissing(w io.Writer, missing []int) {
	shown := missing
	if len(shown) > maxListedMissing {
		shown = shown[:maxListedMissing]
	}

	fmt.Fprintf(w, "Missing chunks (%d): %s", len(missing), joinInts(shown))
	if len(missing) > len(shown) {
		fmt.Fprintf(w, " ... and %d more", len(missing)-len(shown))
	}
	fmt.Fprintln(w)
}

func joinSources(sources []string) string {
	labels := make([]string, 0, len(sources))
	for _, s := range sources {
		labels = append(labels, sourceLabel(s))
	}

	return strings.Join(labels, ", ")
}

// sourceLabel shortens filesystem sources to their base name.
func sourceLabel(source string) string {
	if strings.HasPrefix(source, "session:") {
		return source
	}

	return filepath.Base(source)
}
