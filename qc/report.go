// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qc provides per-chunk read quality metrics.
package qc

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"
)

// Report holds the quality metrics of one chunk. All fields are
// additive so that reports of a file's chunks can be merged.
type Report struct {
	Index int    `yaml:"index"`
	Chunk string `yaml:"chunk"`
	Tool  string `yaml:"tool"`

	// Approximate is set when per-base fields
	// were derived from tool summaries.
	Approximate bool `yaml:"approximate,omitempty"`

	Reads     int64 `yaml:"reads"`
	Bases     int64 `yaml:"bases"`
	MinLength int   `yaml:"min_length"`
	MaxLength int   `yaml:"max_length"`

	QualitySum int64 `yaml:"quality_sum"`
	MinQuality int   `yaml:"min_quality"`
	MaxQuality int   `yaml:"max_quality"`
	Q20Bases   int64 `yaml:"q20_bases"`
	Q30Bases   int64 `yaml:"q30_bases"`

	GCBases int64 `yaml:"gc_bases"`
	NBases  int64 `yaml:"n_bases"`

	// GCSum is the sum over reads of the per-read GC percentage.
	GCSum float64 `yaml:"gc_sum"`

	// Lengths is a histogram of read lengths indexed by length.
	Lengths []int64 `yaml:"length_histogram"`
	// GC is a histogram of per-read GC percentage in 1% bins.
	GC []int64 `yaml:"gc_histogram"`
	// Quality is a histogram of base qualities indexed by Phred score.
	Quality []int64 `yaml:"quality_histogram"`

	Positions   []Position  `yaml:"positions"`
	Duplication Duplication `yaml:"duplication"`
}

// Position holds the quality and base composition at one read position.
type Position struct {
	Count      int64 `yaml:"count"`
	QualitySum int64 `yaml:"quality_sum"`
	A          int64 `yaml:"a"`
	C          int64 `yaml:"c"`
	G          int64 `yaml:"g"`
	T          int64 `yaml:"t"`
	N          int64 `yaml:"n"`
}

// Duplication holds the exact duplicate count among the first Sampled
// reads of a chunk.
type Duplication struct {
	Sampled    int64 `yaml:"sampled"`
	Duplicates int64 `yaml:"duplicates"`
}

// GCBins is the number of bins in a GC histogram.
const GCBins = 101

// NewReport returns an empty report for chunk index idx.
func NewReport(idx int, chunk, tool string) *Report {
	return &Report{
		Index: idx,
		Chunk: chunk,
		Tool:  tool,
		GC:    make([]int64, GCBins),
	}
}

// MeanQuality returns the mean base quality.
func (r *Report) MeanQuality() float64 {
	if r.Bases == 0 {
		return 0
	}
	return float64(r.QualitySum) / float64(r.Bases)
}

// MeanLength returns the mean read length.
func (r *Report) MeanLength() float64 {
	if r.Reads == 0 {
		return 0
	}
	return float64(r.Bases) / float64(r.Reads)
}

// Merge adds the counts of o to r. Duplicates across
// the two reports are not detected.
func (r *Report) Merge(o *Report) {
	if o.Reads == 0 {
		return
	}
	if r.Reads == 0 {
		r.MinLength, r.MaxLength = o.MinLength, o.MaxLength
	} else {
		r.MinLength = min(r.MinLength, o.MinLength)
		r.MaxLength = max(r.MaxLength, o.MaxLength)
	}
	if r.Bases == 0 {
		r.MinQuality, r.MaxQuality = o.MinQuality, o.MaxQuality
	} else if o.Bases != 0 {
		r.MinQuality = min(r.MinQuality, o.MinQuality)
		r.MaxQuality = max(r.MaxQuality, o.MaxQuality)
	}
	r.Approximate = r.Approximate || o.Approximate
	r.Reads += o.Reads
	r.Bases += o.Bases
	r.QualitySum += o.QualitySum
	r.Q20Bases += o.Q20Bases
	r.Q30Bases += o.Q30Bases
	r.GCBases += o.GCBases
	r.NBases += o.NBases
	r.GCSum += o.GCSum

	r.Lengths = addCounts(r.Lengths, o.Lengths)
	r.GC = addCounts(r.GC, o.GC)
	r.Quality = addCounts(r.Quality, o.Quality)
	for len(r.Positions) < len(o.Positions) {
		r.Positions = append(r.Positions, Position{})
	}
	for i, p := range o.Positions {
		q := &r.Positions[i]
		q.Count += p.Count
		q.QualitySum += p.QualitySum
		q.A += p.A
		q.C += p.C
		q.G += p.G
		q.T += p.T
		q.N += p.N
	}
	r.Duplication.Sampled += o.Duplication.Sampled
	r.Duplication.Duplicates += o.Duplication.Duplicates
}

func addCounts(dst, src []int64) []int64 {
	for len(dst) < len(src) {
		dst = append(dst, 0)
	}
	for i, n := range src {
		dst[i] += n
	}
	return dst
}

// DefaultDuplicateSample is the default number of reads per chunk
// examined for duplication.
const DefaultDuplicateSample = 100000

// Accumulator builds a Report from reads.
type Accumulator struct {
	r      *Report
	sample int64
	seen   map[string]struct{}
}

// NewAccumulator returns an Accumulator filling r. Duplication is
// measured over the first sample reads; a sample of zero disables it.
func NewAccumulator(r *Report, sample int) *Accumulator {
	a := &Accumulator{r: r, sample: int64(sample)}
	if sample > 0 {
		a.seen = make(map[string]struct{})
	}
	if len(r.GC) < GCBins {
		r.GC = addCounts(make([]int64, GCBins), r.GC)
	}
	return a
}

// Report returns the accumulated report.
func (a *Accumulator) Report() *Report { return a.r }

// Add adds the read s to the report.
func (a *Accumulator) Add(s *linear.QSeq) {
	a.AddLetters(s.Seq)
}

// AddLetters adds a read given by its letters to the report.
func (a *Accumulator) AddLetters(read alphabet.QLetters) {
	r := a.r
	n := len(read)
	if r.Reads == 0 {
		r.MinLength, r.MaxLength = n, n
	} else {
		r.MinLength = min(r.MinLength, n)
		r.MaxLength = max(r.MaxLength, n)
	}
	r.Reads++
	r.Bases += int64(n)
	if len(r.Lengths) <= n {
		r.Lengths = addCounts(make([]int64, n+1), r.Lengths)
	}
	r.Lengths[n]++

	for len(r.Positions) < n {
		r.Positions = append(r.Positions, Position{})
	}
	var gc int
	for i, ql := range read {
		q := int(ql.Q)
		if r.Bases == int64(n) && i == 0 {
			r.MinQuality, r.MaxQuality = q, q
		} else {
			r.MinQuality = min(r.MinQuality, q)
			r.MaxQuality = max(r.MaxQuality, q)
		}
		r.QualitySum += int64(q)
		for len(r.Quality) <= q {
			r.Quality = append(r.Quality, 0)
		}
		r.Quality[q]++
		if q >= 20 {
			r.Q20Bases++
		}
		if q >= 30 {
			r.Q30Bases++
		}

		p := &r.Positions[i]
		p.Count++
		p.QualitySum += int64(q)
		switch ql.L {
		case 'A', 'a':
			p.A++
		case 'C', 'c':
			p.C++
			gc++
		case 'G', 'g':
			p.G++
			gc++
		case 'T', 't', 'U', 'u':
			p.T++
		default:
			p.N++
			r.NBases++
		}
	}
	r.GCBases += int64(gc)
	if n != 0 {
		pct := 100 * float64(gc) / float64(n)
		r.GCSum += pct
		r.GC[int(math.Round(pct))]++
	}

	if a.seen != nil && r.Duplication.Sampled < a.sample {
		r.Duplication.Sampled++
		key := letters(read)
		if _, ok := a.seen[key]; ok {
			r.Duplication.Duplicates++
		} else {
			a.seen[key] = struct{}{}
		}
	}
}

func letters(read alphabet.QLetters) string {
	var sb strings.Builder
	sb.Grow(len(read))
	for _, ql := range read {
		sb.WriteByte(byte(ql.L))
	}
	return sb.String()
}

// ReportName returns the report file name for the chunk at path.
func ReportName(path, suffix string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".fastq", ".fq"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base + "_" + suffix + ".yaml"
}
