// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fastp

import (
	"errors"
	"math"

	"github.com/tidwall/gjson"

	"github.com/biogo/fqbatch/qc"
)

// Summary holds the parts of a fastp JSON report used by fqbatch.
type Summary struct {
	Version string

	Before Stage
	After  Stage

	Filtering       Filtering
	DuplicationRate float64
}

// Stage holds the read statistics before or after filtering.
type Stage struct {
	Reads      int64
	Bases      int64
	Q20Bases   int64
	Q30Bases   int64
	MeanLength int
	GCContent  float64

	// Per cycle curves of read 1.
	MeanQuality   []float64
	A, C, G, T, N []float64
}

// Filtering holds the read filtering counts.
type Filtering struct {
	Passed     int64
	LowQuality int64
	TooManyN   int64
	TooShort   int64
	TooLong    int64
}

var errMalformed = errors.New("fastp: malformed JSON report")

// ParseReport parses a fastp JSON report.
func ParseReport(b []byte) (*Summary, error) {
	if !gjson.ValidBytes(b) {
		return nil, errMalformed
	}
	root := gjson.ParseBytes(b)
	if !root.Get("summary.before_filtering.total_reads").Exists() {
		return nil, errMalformed
	}
	s := &Summary{
		Version: root.Get("summary.fastp_version").String(),
		Before:  stage(root.Get("summary.before_filtering"), root.Get("read1_before_filtering")),
		After:   stage(root.Get("summary.after_filtering"), root.Get("read1_after_filtering")),
		Filtering: Filtering{
			Passed:     root.Get("filtering_result.passed_filter_reads").Int(),
			LowQuality: root.Get("filtering_result.low_quality_reads").Int(),
			TooManyN:   root.Get("filtering_result.too_many_N_reads").Int(),
			TooShort:   root.Get("filtering_result.too_short_reads").Int(),
			TooLong:    root.Get("filtering_result.too_long_reads").Int(),
		},
		DuplicationRate: root.Get("duplication.rate").Float(),
	}
	return s, nil
}

func stage(sum, read gjson.Result) Stage {
	return Stage{
		Reads:       sum.Get("total_reads").Int(),
		Bases:       sum.Get("total_bases").Int(),
		Q20Bases:    sum.Get("q20_bases").Int(),
		Q30Bases:    sum.Get("q30_bases").Int(),
		MeanLength:  int(sum.Get("read1_mean_length").Int()),
		GCContent:   sum.Get("gc_content").Float(),
		MeanQuality: floats(read.Get("quality_curves.mean")),
		A:           floats(read.Get("content_curves.A")),
		C:           floats(read.Get("content_curves.C")),
		G:           floats(read.Get("content_curves.G")),
		T:           floats(read.Get("content_curves.T")),
		N:           floats(read.Get("content_curves.N")),
	}
}

func floats(r gjson.Result) []float64 {
	a := r.Array()
	if len(a) == 0 {
		return nil
	}
	f := make([]float64, len(a))
	for i, v := range a {
		f[i] = v.Float()
	}
	return f
}

// Report returns an approximate qc.Report for the stage. All reads are
// taken to have the mean read length, GC content and per cycle mean
// quality. The duplication rate is applied to all reads.
func (s Stage) Report(idx int, chunk string, dupRate float64) *qc.Report {
	r := qc.NewReport(idx, chunk, "fastp")
	r.Approximate = true
	r.Reads = s.Reads
	r.Bases = s.Bases
	r.Q20Bases = s.Q20Bases
	r.Q30Bases = s.Q30Bases
	if s.Reads == 0 {
		return r
	}
	r.MinLength, r.MaxLength = s.MeanLength, s.MeanLength
	r.Lengths = make([]int64, s.MeanLength+1)
	r.Lengths[s.MeanLength] = s.Reads
	r.GCBases = round(s.GCContent * float64(s.Bases))
	r.GCSum = 100 * s.GCContent * float64(s.Reads)
	r.GC[min(max(int(math.Round(100*s.GCContent)), 0), qc.GCBins-1)] = s.Reads

	n := float64(s.Reads)
	r.Positions = make([]qc.Position, len(s.MeanQuality))
	for i, q := range s.MeanQuality {
		p := &r.Positions[i]
		p.Count = s.Reads
		p.QualitySum = round(q * n)
		p.A = round(at(s.A, i) * n)
		p.C = round(at(s.C, i) * n)
		p.G = round(at(s.G, i) * n)
		p.T = round(at(s.T, i) * n)
		p.N = round(at(s.N, i) * n)
		r.NBases += p.N

		iq := int(math.Round(q))
		if i == 0 {
			r.MinQuality, r.MaxQuality = iq, iq
		} else {
			r.MinQuality = min(r.MinQuality, iq)
			r.MaxQuality = max(r.MaxQuality, iq)
		}
		for len(r.Quality) <= iq {
			r.Quality = append(r.Quality, 0)
		}
		r.Quality[iq] += s.Reads
	}
	var qsum float64
	for _, q := range s.MeanQuality {
		qsum += q
	}
	if len(s.MeanQuality) != 0 {
		// Scale the per cycle means to the total base count.
		r.QualitySum = round(qsum / float64(len(s.MeanQuality)) * float64(s.Bases))
	}

	r.Duplication = qc.Duplication{Sampled: s.Reads, Duplicates: round(dupRate * n)}
	return r
}

func at(f []float64, i int) float64 {
	if i < len(f) {
		return f[i]
	}
	return 0
}

func round(f float64) int64 { return int64(math.Round(f)) }
