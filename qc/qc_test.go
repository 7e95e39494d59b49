// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qc

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/biogo/alphabet"
	"gopkg.in/check.v1"

	"github.com/biogo/fqbatch/chunk"
	"github.com/biogo/fqbatch/internal/fqtest"
)

// Tests
func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

const small = `@a
ACGT
+
IIII
@b
GGNN
+
!!55
@c
ACGT
+
5555
`

func (s *S) TestNative(c *check.C) {
	dir := c.MkDir()
	path := filepath.Join(dir, "small_chunk_001.fastq")
	fqtest.WriteFile(path, small)

	r, err := Native{}.Extract(context.Background(), chunk.Chunk{Index: 1, Path: path})
	c.Assert(err, check.Equals, nil)

	c.Check(r.Index, check.Equals, 1)
	c.Check(r.Tool, check.Equals, "native")
	c.Check(r.Reads, check.Equals, int64(3))
	c.Check(r.Bases, check.Equals, int64(12))
	c.Check(r.MinLength, check.Equals, 4)
	c.Check(r.MaxLength, check.Equals, 4)
	c.Check(r.Lengths, check.DeepEquals, []int64{0, 0, 0, 0, 3})
	c.Check(r.QualitySum, check.Equals, int64(280))
	c.Check(r.MinQuality, check.Equals, 0)
	c.Check(r.MaxQuality, check.Equals, 40)
	c.Check(r.Q20Bases, check.Equals, int64(10))
	c.Check(r.Q30Bases, check.Equals, int64(4))
	c.Check(r.GCBases, check.Equals, int64(6))
	c.Check(r.NBases, check.Equals, int64(2))
	c.Check(r.GCSum, check.Equals, 150.0)
	c.Check(r.GC[50], check.Equals, int64(3))
	c.Check(r.Quality[0], check.Equals, int64(2))
	c.Check(r.Quality[20], check.Equals, int64(6))
	c.Check(r.Quality[40], check.Equals, int64(4))
	c.Check(r.Duplication, check.Equals, Duplication{Sampled: 3, Duplicates: 1})
	c.Assert(r.Positions, check.HasLen, 4)
	c.Check(r.Positions[0], check.Equals, Position{Count: 3, QualitySum: 60, A: 2, G: 1})
	c.Check(r.Positions[2], check.Equals, Position{Count: 3, QualitySum: 80, G: 2, N: 1})
	c.Check(math.Abs(r.MeanQuality()-280.0/12) < 1e-12, check.Equals, true)
	c.Check(r.MeanLength(), check.Equals, 4.0)

	r, err = Native{DuplicateSample: -1}.Extract(context.Background(), chunk.Chunk{Index: 1, Path: path})
	c.Assert(err, check.Equals, nil)
	c.Check(r.Duplication, check.Equals, Duplication{})
}

func (s *S) TestNativeFailure(c *check.C) {
	_, err := Native{}.Extract(context.Background(), chunk.Chunk{Index: 7, Path: filepath.Join(c.MkDir(), "missing.fastq")})
	var ee *ExtractionError
	c.Assert(errors.As(err, &ee), check.Equals, true)
	c.Check(ee.Index, check.Equals, 7)
	c.Check(ee.Tool, check.Equals, "native")
	c.Check(errors.Is(err, os.ErrNotExist), check.Equals, true)
}

func (s *S) TestMerge(c *check.C) {
	dir := c.MkDir()
	in := filepath.Join(dir, "reads.fastq")
	fqtest.WriteFile(in, fqtest.Reads(1000))

	ext := Native{DuplicateSample: -1}
	whole, err := ext.Extract(context.Background(), chunk.Chunk{Index: 1, Path: in})
	c.Assert(err, check.Equals, nil)

	m, err := chunk.Split(context.Background(), in, chunk.Config{Dir: filepath.Join(dir, "chunks"), Records: 300})
	c.Assert(err, check.Equals, nil)
	c.Assert(m.Chunks, check.HasLen, 4)
	merged := NewReport(1, in, "native")
	for _, ch := range m.Chunks {
		r, err := ext.Extract(context.Background(), ch)
		c.Assert(err, check.Equals, nil)
		merged.Merge(r)
	}

	c.Check(math.Abs(merged.GCSum-whole.GCSum) < 1e-6, check.Equals, true)
	merged.GCSum, whole.GCSum = 0, 0
	merged.Chunk = whole.Chunk
	c.Check(merged, check.DeepEquals, whole)
}

func (s *S) TestMergeEmpty(c *check.C) {
	r := NewReport(1, "", "native")
	r.Merge(NewReport(2, "", "native"))
	c.Check(r.Reads, check.Equals, int64(0))

	o := NewReport(2, "", "native")
	NewAccumulator(o, 0).AddLetters(nil)
	r.Merge(o)
	c.Check(r.Reads, check.Equals, int64(1))
	c.Check(r.MinLength, check.Equals, 0)
	c.Check(r.Bases, check.Equals, int64(0))
}

func (s *S) TestReportFile(c *check.C) {
	dir := c.MkDir()
	path := filepath.Join(dir, "small_chunk_001.fastq")
	fqtest.WriteFile(path, small)
	r, err := Native{}.Extract(context.Background(), chunk.Chunk{Index: 1, Path: path})
	c.Assert(err, check.Equals, nil)

	out := filepath.Join(dir, ReportName(path, "report"))
	c.Check(filepath.Base(out), check.Equals, "small_chunk_001_report.yaml")
	c.Assert(WriteReport(out, r), check.Equals, nil)
	got, err := ReadReport(out)
	c.Assert(err, check.Equals, nil)
	c.Check(got.Reads, check.Equals, r.Reads)
	c.Check(got.Lengths, check.DeepEquals, r.Lengths)
	c.Check(got.Positions, check.DeepEquals, r.Positions)
	c.Check(got.Quality, check.DeepEquals, r.Quality)
	c.Check(got.Duplication, check.Equals, r.Duplication)
}

func (s *S) TestReportFileLengths(c *check.C) {
	r := NewReport(3, "reads_chunk_003.fastq", "native")
	acc := NewAccumulator(r, 0)
	for _, n := range []int{150, 36, 150, 151} {
		read := make(alphabet.QLetters, n)
		for i := range read {
			read[i] = alphabet.QLetter{L: 'A', Q: 30}
		}
		acc.AddLetters(read)
	}
	c.Check(r.Lengths, check.HasLen, 152)

	path := filepath.Join(c.MkDir(), ReportName(r.Chunk, "report"))
	c.Assert(WriteReport(path, r), check.Equals, nil)
	got, err := ReadReport(path)
	c.Assert(err, check.Equals, nil)
	c.Check(got.Lengths, check.DeepEquals, r.Lengths)
	c.Check(got.Lengths[150], check.Equals, int64(2))
	c.Check(got.Lengths[36], check.Equals, int64(1))
	c.Check(got.MaxLength, check.Equals, 151)
}
