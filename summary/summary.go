// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package summary aggregates chunk reports into file summaries.
//
// Aggregation is pure: reports are merged in chunk index order and the
// result depends only on the reports given.
package summary

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/biogo/fqbatch/internal/atomicfile"
	"github.com/biogo/fqbatch/qc"
)

// AggregationError is returned when reports of expected chunks
// are missing. The summary returned with it is marked partial.
type AggregationError struct {
	Source   string
	Expected int
	Missing  []int
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("summary: %s: %d of %d chunk reports missing: %s",
		e.Source, len(e.Missing), e.Expected, ints(e.Missing))
}

// FileSummary is the aggregate of the chunk reports of one file.
type FileSummary struct {
	Source      string `yaml:"source"`
	Tool        string `yaml:"tool"`
	Approximate bool   `yaml:"approximate,omitempty"`

	Chunks  []int `yaml:"chunks"`
	Partial bool  `yaml:"partial"`
	Missing []int `yaml:"missing,omitempty"`

	Reads int64 `yaml:"reads"`
	Bases int64 `yaml:"bases"`

	Length      LengthStats  `yaml:"length"`
	GC          GCStats      `yaml:"gc"`
	Quality     QualityStats `yaml:"quality"`
	NContent    float64      `yaml:"n_content"`
	Duplication float64      `yaml:"duplication"`

	Positions []PositionStats `yaml:"positions"`

	Lengths          []int64 `yaml:"length_histogram"`
	GCHistogram      []int64 `yaml:"gc_histogram"`
	QualityHistogram []int64 `yaml:"quality_histogram"`

	Checks []Check `yaml:"checks"`
}

// LengthStats summarizes read lengths.
type LengthStats struct {
	Min  int     `yaml:"min"`
	Max  int     `yaml:"max"`
	Mean float64 `yaml:"mean"`
	N50  int     `yaml:"n50"`
}

// Uniform returns whether all reads have the same length.
func (l LengthStats) Uniform() bool { return l.Min == l.Max }

// GCStats summarizes per-read GC percentage.
type GCStats struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
}

// QualityStats summarizes base qualities. Q20 and Q30 are the
// percentages of bases at or above those qualities.
type QualityStats struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
	Min    int     `yaml:"min"`
	Max    int     `yaml:"max"`
	Q20    float64 `yaml:"q20"`
	Q30    float64 `yaml:"q30"`
}

// PositionStats holds the mean quality and base
// composition in percent at a 1-based read position.
type PositionStats struct {
	Position int     `yaml:"position"`
	Mean     float64 `yaml:"mean"`
	A        float64 `yaml:"a"`
	C        float64 `yaml:"c"`
	G        float64 `yaml:"g"`
	T        float64 `yaml:"t"`
	N        float64 `yaml:"n"`
}

// Aggregate merges reports into a summary of source. expected lists the
// indices of all chunks of the file; when some have no report, the
// summary is returned marked partial together with an *AggregationError.
// A nil expected takes the reports to be complete.
func Aggregate(source string, reports []*qc.Report, expected []int) (*FileSummary, error) {
	if len(reports) == 0 {
		return nil, &AggregationError{Source: source, Expected: len(expected), Missing: append([]int(nil), expected...)}
	}
	sorted := append([]*qc.Report(nil), reports...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	present := make(map[int]bool)
	tool := sorted[0].Tool
	merged := qc.NewReport(0, source, tool)
	s := &FileSummary{Source: source}
	for _, r := range sorted {
		if present[r.Index] {
			return nil, fmt.Errorf("summary: %s: duplicate report for chunk %d", source, r.Index)
		}
		present[r.Index] = true
		s.Chunks = append(s.Chunks, r.Index)
		if r.Tool != tool {
			tool = "mixed"
		}
		merged.Merge(r)
	}
	s.Tool = tool

	for _, idx := range expected {
		if !present[idx] {
			s.Missing = append(s.Missing, idx)
		}
	}
	sort.Ints(s.Missing)
	s.Partial = len(s.Missing) != 0

	fill(s, merged)
	s.Checks = Assess(s)

	if s.Partial {
		return s, &AggregationError{Source: source, Expected: len(expected), Missing: s.Missing}
	}
	return s, nil
}

func fill(s *FileSummary, r *qc.Report) {
	s.Approximate = r.Approximate
	s.Reads = r.Reads
	s.Bases = r.Bases
	s.Lengths = r.Lengths
	s.GCHistogram = r.GC
	s.QualityHistogram = r.Quality

	s.Length = LengthStats{
		Min:  r.MinLength,
		Max:  r.MaxLength,
		Mean: r.MeanLength(),
		N50:  n50(r.Lengths, r.Bases),
	}

	if r.Reads != 0 {
		x, w := histogram(r.GC)
		s.GC = GCStats{
			Mean:   r.GCSum / float64(r.Reads),
			StdDev: stdDev(x, w),
		}
	}
	if r.Bases != 0 {
		x, w := histogram(r.Quality)
		s.Quality = QualityStats{
			Mean:   r.MeanQuality(),
			StdDev: stdDev(x, w),
			Min:    r.MinQuality,
			Max:    r.MaxQuality,
			Q20:    percent(r.Q20Bases, r.Bases),
			Q30:    percent(r.Q30Bases, r.Bases),
		}
		s.NContent = percent(r.NBases, r.Bases)
	}
	s.Duplication = percent(r.Duplication.Duplicates, r.Duplication.Sampled)

	s.Positions = make([]PositionStats, len(r.Positions))
	for i, p := range r.Positions {
		ps := PositionStats{Position: i + 1}
		if p.Count != 0 {
			ps.Mean = float64(p.QualitySum) / float64(p.Count)
			ps.A = percent(p.A, p.Count)
			ps.C = percent(p.C, p.Count)
			ps.G = percent(p.G, p.Count)
			ps.T = percent(p.T, p.Count)
			ps.N = percent(p.N, p.Count)
		}
		s.Positions[i] = ps
	}
}

// histogram returns the bin values and weights of h.
func histogram(h []int64) (x, w []float64) {
	x = make([]float64, len(h))
	w = make([]float64, len(h))
	for i, n := range h {
		x[i] = float64(i)
		w[i] = float64(n)
	}
	return x, w
}

func stdDev(x, w []float64) float64 {
	var n float64
	for _, v := range w {
		n += v
	}
	if n < 2 {
		return 0
	}
	return stat.StdDev(x, w)
}

func percent(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return 100 * float64(n) / float64(d)
}

// n50 returns the length such that reads of that length or longer
// hold at least half of all bases.
func n50(lengths []int64, bases int64) int {
	if bases == 0 {
		return 0
	}
	var sum int64
	for l := len(lengths) - 1; l > 0; l-- {
		sum += int64(l) * lengths[l]
		if 2*sum >= bases {
			return l
		}
	}
	return 0
}

// Write writes s to path as YAML.
func Write(path string, s *FileSummary) error {
	err := atomicfile.WriteYAML(path, s)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	return nil
}

// Read reads a summary written by Write.
func Read(path string) (*FileSummary, error) {
	var s FileSummary
	err := atomicfile.ReadYAML(path, &s)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return &s, nil
}
