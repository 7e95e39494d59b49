// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package summary

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/biogo/fqbatch/trim"
)

// WriteText writes a human readable report of s to w.
func WriteText(w io.Writer, s *FileSummary) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "FASTQ Quality Control Report")
	fmt.Fprintln(bw, strings.Repeat("=", 50))
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "File: %s\n", filepath.Base(s.Source))
	fmt.Fprintf(bw, "Tool: %s", s.Tool)
	if s.Approximate {
		fmt.Fprint(bw, " (approximate per-base metrics)")
	}
	fmt.Fprintln(bw)
	if s.Partial {
		fmt.Fprintf(bw, "PARTIAL: missing chunks %s\n", ints(s.Missing))
	}
	fmt.Fprintln(bw)

	section(bw, "BASIC STATISTICS")
	fmt.Fprintf(bw, "Total Sequences: %s\n", humanize.Comma(s.Reads))
	fmt.Fprintf(bw, "Total Bases: %s\n", humanize.Comma(s.Bases))
	fmt.Fprintf(bw, "Chunks Processed: %d\n", len(s.Chunks))
	fmt.Fprintf(bw, "Sequence Length: %d-%d bp\n", s.Length.Min, s.Length.Max)
	fmt.Fprintf(bw, "Mean Length: %.1f bp\n", s.Length.Mean)
	fmt.Fprintf(bw, "N50: %d bp\n\n", s.Length.N50)

	section(bw, "QUALITY SCORES")
	fmt.Fprintf(bw, "Mean Quality: Q%.1f\n", s.Quality.Mean)
	fmt.Fprintf(bw, "Quality Range: Q%d-Q%d\n", s.Quality.Min, s.Quality.Max)
	fmt.Fprintf(bw, "Quality Std Dev: %.1f\n", s.Quality.StdDev)
	fmt.Fprintf(bw, "Bases >= Q20: %.1f%%\n", s.Quality.Q20)
	fmt.Fprintf(bw, "Bases >= Q30: %.1f%%\n\n", s.Quality.Q30)

	section(bw, "GC CONTENT")
	fmt.Fprintf(bw, "Mean GC Content: %.1f%%\n", s.GC.Mean)
	fmt.Fprintf(bw, "GC Std Deviation: %.1f%%\n", s.GC.StdDev)
	fmt.Fprintf(bw, "N Content: %.2f%%\n", s.NContent)
	fmt.Fprintf(bw, "Duplication: %.1f%%\n\n", s.Duplication)

	section(bw, "QUALITY ASSESSMENT")
	for _, c := range s.Checks {
		fmt.Fprintf(bw, "%-5s %-12s %s\n", strings.ToUpper(c.Status), c.Name, c.Message)
	}
	fmt.Fprintln(bw)
	if s.Passed() {
		fmt.Fprintln(bw, "Overall Assessment: HIGH QUALITY SEQUENCING DATA")
	} else {
		fmt.Fprintln(bw, "Overall Assessment: REVIEW WARNINGS BEFORE DOWNSTREAM ANALYSIS")
	}
	return bw.Flush()
}

// WriteComparison writes a human readable trimming comparison to w.
func WriteComparison(w io.Writer, c *Comparison) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Trimming Comparison")
	fmt.Fprintln(bw, strings.Repeat("=", 50))
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "File: %s\n\n", filepath.Base(c.Source))
	fmt.Fprintf(bw, "%-20s %15s %15s\n", "", "Before", "After")
	fmt.Fprintf(bw, "%-20s %15s %15s\n", "Reads", humanize.Comma(c.ReadsBefore), humanize.Comma(c.ReadsAfter))
	fmt.Fprintf(bw, "%-20s %15s %15s\n", "Bases", humanize.Comma(c.BasesBefore), humanize.Comma(c.BasesAfter))
	fmt.Fprintf(bw, "%-20s %15.1f %15.1f\n", "Mean length (bp)", c.MeanLengthBefore, c.MeanLengthAfter)
	fmt.Fprintf(bw, "%-20s %15.1f %15.1f\n", "Mean quality", c.MeanQualityBefore, c.MeanQualityAfter)
	fmt.Fprintf(bw, "%-20s %15.1f %15.1f\n", "Bases >= Q30 (%)", c.Q30Before, c.Q30After)
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "Read retention: %.1f%%\n", c.ReadRetention)
	fmt.Fprintf(bw, "Base retention: %.1f%%\n", c.BaseRetention)
	fmt.Fprintf(bw, "Quality gain: %+.2f\n\n", c.QualityGain())

	section(bw, "DROPPED READS")
	fmt.Fprintf(bw, "Too short: %s\n", humanize.Comma(c.Stats.TooShort))
	fmt.Fprintf(bw, "Too many N: %s\n", humanize.Comma(c.Stats.TooManyN))
	fmt.Fprintf(bw, "Low quality: %s\n\n", humanize.Comma(c.Stats.LowQuality))

	section(bw, "TRIMMING CATEGORIES")
	for i, n := range c.Stats.Categories() {
		fmt.Fprintf(bw, "%-20s %s\n", trim.Category(i), humanize.Comma(n))
	}
	return bw.Flush()
}

// WriteReadComparison writes the per-read trimming differences of a
// read sample to w, followed by sample totals.
func WriteReadComparison(w io.Writer, diffs []trim.ReadDiff) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Original vs Trimmed Reads")
	fmt.Fprintln(bw, strings.Repeat("=", 50))
	fmt.Fprintln(bw)
	var unchanged, dropped int
	for i, d := range diffs {
		section(bw, fmt.Sprintf("Read %d: %s", i+1, d.ID))
		switch {
		case d.Dropped:
			dropped++
			fmt.Fprintf(bw, "Length:  %d bp, removed by trimming\n", d.Length)
			fmt.Fprintf(bw, "Quality: Q%.1f (min Q%d, max Q%d)\n\n", d.Before.Mean, d.Before.Min, d.Before.Max)
			continue
		case d.Unchanged():
			unchanged++
		}
		fmt.Fprintf(bw, "Length:  %d bp -> %d bp (%+d)\n", d.Length, d.TrimmedLength, d.TrimmedLength-d.Length)
		fmt.Fprintf(bw, "Quality: Q%.1f -> Q%.1f (min Q%d -> Q%d, max Q%d -> Q%d)\n",
			d.Before.Mean, d.After.Mean, d.Before.Min, d.After.Min, d.Before.Max, d.After.Max)
		switch {
		case d.Unchanged():
			fmt.Fprintln(bw, "Changes: none")
		case d.Modified:
			fmt.Fprintln(bw, "Changes: modified, not an end trim")
		default:
			if d.Left != "" {
				fmt.Fprintf(bw, "Left:    %s (%d bp)\n", d.Left, len(d.Left))
			}
			if d.Right != "" {
				fmt.Fprintf(bw, "Right:   %s (%d bp)\n", d.Right, len(d.Right))
			}
		}
		fmt.Fprintln(bw)
	}
	section(bw, "SAMPLE SUMMARY")
	fmt.Fprintf(bw, "Sample size: %d reads\n", len(diffs))
	fmt.Fprintf(bw, "Unchanged:   %d\n", unchanged)
	fmt.Fprintf(bw, "Trimmed:     %d\n", len(diffs)-unchanged-dropped)
	fmt.Fprintf(bw, "Removed:     %d\n", dropped)
	return bw.Flush()
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

func ints(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = fmt.Sprint(n)
	}
	return strings.Join(s, ",")
}
