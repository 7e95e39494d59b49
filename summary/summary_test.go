// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package summary

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/biogo/alphabet"
	"gopkg.in/check.v1"

	"github.com/biogo/fqbatch/chunk"
	"github.com/biogo/fqbatch/internal/fqtest"
	"github.com/biogo/fqbatch/qc"
	"github.com/biogo/fqbatch/trim"
)

// Tests
func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func report(idx int, reads ...string) *qc.Report {
	r := qc.NewReport(idx, "", "native")
	acc := qc.NewAccumulator(r, 100)
	for _, rd := range reads {
		seq, qual, _ := strings.Cut(rd, ":")
		ql := make(alphabet.QLetters, len(seq))
		for i := range seq {
			ql[i] = alphabet.QLetter{L: alphabet.Letter(seq[i]), Q: alphabet.Qphred(qual[i] - 33)}
		}
		acc.AddLetters(ql)
	}
	return r
}

func (s *S) TestAggregateSmall(c *check.C) {
	// '?' is Q30 and '+' is Q10.
	sum, err := Aggregate("small.fastq", []*qc.Report{
		report(2, "AAAA:++++"),
		report(1, "ACGT:????"),
	}, []int{1, 2})
	c.Assert(err, check.Equals, nil)
	c.Check(sum.Chunks, check.DeepEquals, []int{1, 2})
	c.Check(sum.Partial, check.Equals, false)
	c.Check(sum.Reads, check.Equals, int64(2))
	c.Check(sum.Bases, check.Equals, int64(8))
	c.Check(sum.Length, check.Equals, LengthStats{Min: 4, Max: 4, Mean: 4, N50: 4})
	c.Check(near(sum.GC.Mean, 25), check.Equals, true)
	c.Check(near(sum.GC.StdDev, math.Sqrt(1250)), check.Equals, true, check.Commentf("%v", sum.GC.StdDev))
	c.Check(near(sum.Quality.Mean, 20), check.Equals, true)
	c.Check(near(sum.Quality.StdDev, math.Sqrt(800.0/7)), check.Equals, true, check.Commentf("%v", sum.Quality.StdDev))
	c.Check(sum.Quality.Min, check.Equals, 10)
	c.Check(sum.Quality.Max, check.Equals, 30)
	c.Check(sum.Quality.Q20, check.Equals, 50.0)
	c.Check(sum.Quality.Q30, check.Equals, 50.0)
	c.Assert(sum.Positions, check.HasLen, 4)
	c.Check(sum.Positions[1], check.Equals, PositionStats{Position: 2, Mean: 20, A: 50, C: 50})
	c.Check(sum.Duplication, check.Equals, 0.0)
}

func chunkReports(c *check.C, n, size int) (string, []*qc.Report) {
	dir := c.MkDir()
	in := filepath.Join(dir, "reads.fastq")
	fqtest.WriteFile(in, fqtest.Reads(n))
	m, err := chunk.Split(context.Background(), in, chunk.Config{Dir: dir, Records: size})
	c.Assert(err, check.Equals, nil)
	var reports []*qc.Report
	for _, ch := range m.Chunks {
		r, err := qc.Native{}.Extract(context.Background(), ch)
		c.Assert(err, check.Equals, nil)
		reports = append(reports, r)
	}
	return in, reports
}

func (s *S) TestAggregatePartial(c *check.C) {
	in, reports := chunkReports(c, 1000, 100)
	c.Assert(reports, check.HasLen, 10)
	expected := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	present := append(append([]*qc.Report(nil), reports[:2]...), reports[3:]...)
	sum, err := Aggregate(in, present, expected)
	var ae *AggregationError
	c.Assert(errors.As(err, &ae), check.Equals, true)
	c.Check(ae.Missing, check.DeepEquals, []int{3})
	c.Check(ae.Expected, check.Equals, 10)
	c.Check(err, check.ErrorMatches, `summary: .*reads.fastq: 1 of 10 chunk reports missing: 3`)
	c.Assert(sum, check.NotNil)
	c.Check(sum.Partial, check.Equals, true)
	c.Check(sum.Missing, check.DeepEquals, []int{3})
	c.Check(sum.Reads, check.Equals, int64(900))
	c.Check(sum.Passed(), check.Equals, false)

	var buf bytes.Buffer
	c.Assert(WriteText(&buf, sum), check.Equals, nil)
	c.Check(strings.Contains(buf.String(), "PARTIAL: missing chunks 3"), check.Equals, true)
	c.Check(strings.Contains(buf.String(), "Total Sequences: 900"), check.Equals, true)

	full, err := Aggregate(in, reports, expected)
	c.Assert(err, check.Equals, nil)
	c.Check(full.Reads, check.Equals, int64(1000))
	c.Check(full.Partial, check.Equals, false)
	c.Check(full.Missing, check.IsNil)
}

func (s *S) TestAggregateDeterministic(c *check.C) {
	in, reports := chunkReports(c, 500, 50)
	first, err := Aggregate(in, reports, nil)
	c.Assert(err, check.Equals, nil)

	reversed := make([]*qc.Report, len(reports))
	for i, r := range reports {
		reversed[len(reports)-1-i] = r
	}
	second, err := Aggregate(in, reversed, nil)
	c.Assert(err, check.Equals, nil)
	c.Check(second, check.DeepEquals, first)

	// Aggregation does not modify its input.
	third, err := Aggregate(in, reports, nil)
	c.Assert(err, check.Equals, nil)
	c.Check(third, check.DeepEquals, first)
}

func (s *S) TestAggregateErrors(c *check.C) {
	sum, err := Aggregate("x.fastq", nil, []int{1, 2})
	c.Check(sum, check.IsNil)
	var ae *AggregationError
	c.Assert(errors.As(err, &ae), check.Equals, true)
	c.Check(ae.Missing, check.DeepEquals, []int{1, 2})

	_, err = Aggregate("x.fastq", []*qc.Report{report(1, "A:I"), report(1, "C:I")}, nil)
	c.Check(err, check.ErrorMatches, "summary: x.fastq: duplicate report for chunk 1")
}

func (s *S) TestAssess(c *check.C) {
	for i, t := range []struct {
		sum  FileSummary
		want []string
	}{
		{
			sum:  FileSummary{Quality: QualityStats{Mean: 35}, GC: GCStats{Mean: 45}, Length: LengthStats{Min: 150, Max: 150}},
			want: []string{Pass, Pass, Pass, Pass},
		},
		{
			sum:  FileSummary{Quality: QualityStats{Mean: 25}, GC: GCStats{Mean: 85}, Length: LengthStats{Min: 35, Max: 150}, Duplication: 30},
			want: []string{Pass, Warn, Info, Warn},
		},
		{
			sum:  FileSummary{Quality: QualityStats{Mean: 12}, GC: GCStats{Mean: 20}, Partial: true, Missing: []int{2}, Chunks: []int{1}},
			want: []string{Warn, Pass, Pass, Pass, Warn},
		},
	} {
		var got []string
		for _, ch := range Assess(&t.sum) {
			got = append(got, ch.Status)
		}
		c.Check(got, check.DeepEquals, t.want, check.Commentf("Test %d", i))
	}
}

func (s *S) TestCompare(c *check.C) {
	before, err := Aggregate("r.fastq", []*qc.Report{report(1, "ACGTACGT:IIIIII##", "ACGTACGT:IIIIIIII")}, nil)
	c.Assert(err, check.Equals, nil)
	after, err := Aggregate("r.fastq", []*qc.Report{report(1, "ACGTAC:IIIIII", "ACGTACGT:IIIIIIII")}, nil)
	c.Assert(err, check.Equals, nil)

	cmp := Compare(before, after, trim.Stats{ReadsIn: 2, ReadsOut: 2, Unchanged: 1, Minor: 1})
	c.Check(cmp.ReadRetention, check.Equals, 100.0)
	c.Check(cmp.BaseRetention, check.Equals, 87.5)
	c.Check(cmp.MeanLengthAfter, check.Equals, 7.0)
	c.Check(cmp.QualityGain() > 0, check.Equals, true)

	var buf bytes.Buffer
	c.Assert(WriteComparison(&buf, cmp), check.Equals, nil)
	c.Check(strings.Contains(buf.String(), "Base retention: 87.5%"), check.Equals, true)
	c.Check(strings.Contains(buf.String(), "minor (1-3bp)"), check.Equals, true)
}

func (s *S) TestFile(c *check.C) {
	sum, err := Aggregate("small.fastq", []*qc.Report{report(1, "ACGT:????")}, nil)
	c.Assert(err, check.Equals, nil)
	path := filepath.Join(c.MkDir(), "small_summary.yaml")
	c.Assert(Write(path, sum), check.Equals, nil)
	got, err := Read(path)
	c.Assert(err, check.Equals, nil)
	c.Check(got.Reads, check.Equals, sum.Reads)
	c.Check(got.Checks, check.DeepEquals, sum.Checks)
	c.Check(got.Positions, check.DeepEquals, sum.Positions)
	c.Check(got.Lengths, check.DeepEquals, sum.Lengths)
	c.Check(got.Length, check.Equals, sum.Length)
}

func (s *S) TestWriteReadComparison(c *check.C) {
	diffs := []trim.ReadDiff{
		{ID: "r1", Length: 8, TrimmedLength: 8},
		{ID: "r2", Length: 10, TrimmedLength: 6, Left: "TT", Right: "GC",
			Before: trim.QualityRange{Min: 2, Mean: 30.8, Max: 40},
			After:  trim.QualityRange{Min: 40, Mean: 40, Max: 40}},
		{ID: "r3", Length: 10, Dropped: true},
	}
	var buf bytes.Buffer
	c.Assert(WriteReadComparison(&buf, diffs), check.Equals, nil)
	text := buf.String()
	for _, want := range []string{
		"Read 2: r2",
		"Length:  10 bp -> 6 bp (-4)",
		"Left:    TT (2 bp)",
		"Right:   GC (2 bp)",
		"Quality: Q30.8 -> Q40.0 (min Q2 -> Q40, max Q40 -> Q40)",
		"Length:  10 bp, removed by trimming",
		"Sample size: 3 reads",
		"Unchanged:   1",
		"Trimmed:     1",
		"Removed:     1",
	} {
		c.Check(strings.Contains(text, want), check.Equals, true, check.Commentf("missing %q in\n%s", want, text))
	}
}
