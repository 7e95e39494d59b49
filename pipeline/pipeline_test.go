// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"gopkg.in/check.v1"

	"github.com/biogo/fqbatch/batch"
	"github.com/biogo/fqbatch/chunk"
	"github.com/biogo/fqbatch/config"
	"github.com/biogo/fqbatch/fqio"
	"github.com/biogo/fqbatch/internal/fqtest"
	"github.com/biogo/fqbatch/qc"
	"github.com/biogo/fqbatch/summary"
	"github.com/biogo/fqbatch/trim"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

// setup writes n reads to sample.fastq and returns a pipeline writing
// to a fresh output directory in chunks of 250 records.
func setup(c *check.C, n int) (*Pipeline, string) {
	dir := c.MkDir()
	input := filepath.Join(dir, "sample.fastq")
	fqtest.WriteFile(input, fqtest.Reads(n))

	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.Plots = false
	cfg.Chunk.Records = 250
	cfg.Batch.Workers = 2
	p, err := New(cfg, log.New(io.Discard))
	c.Assert(err, check.IsNil)
	return p, input
}

func countReads(c *check.C, path string) int64 {
	f, err := fqio.Open(path)
	c.Assert(err, check.IsNil)
	defer f.Close()
	sc := fqio.NewScanner(f, path)
	var n int64
	for sc.Next() {
		n++
	}
	c.Assert(sc.Error(), check.IsNil)
	return n
}

func (s *S) TestRunQC(c *check.C) {
	p, input := setup(c, 1000)
	p.Config.Output.Plots = true
	p.Config.Metrics.Textfile = filepath.Join(p.Config.Output.Dir, "fqbatch.prom")

	o, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)
	c.Check(o.RunID, check.Not(check.Equals), "")
	c.Check(o.Manifest.Chunks, check.HasLen, 4)
	c.Check(o.Summary.Reads, check.Equals, int64(1000))
	c.Check(o.Summary.Chunks, check.DeepEquals, []int{1, 2, 3, 4})
	c.Check(o.Partial(), check.Equals, false)
	c.Check(o.Failed, check.HasLen, 0)
	c.Check(o.Trimmed, check.IsNil)

	want, err := qc.Native{}.Extract(context.Background(), chunk.Chunk{Index: 1, Path: input})
	c.Assert(err, check.IsNil)
	c.Check(o.Summary.Bases, check.Equals, want.Bases)
	c.Check(o.Summary.Quality.Min, check.Equals, want.MinQuality)

	out := p.Config.Output.Dir
	for _, name := range []string{
		"sample_summary.yaml",
		"sample_report.txt",
		"sample_status.txt",
		"sample_per_base_quality.png",
		"sample_gc_distribution.png",
		"reports/sample_chunk_001_report.yaml",
		"reports/sample_chunk_004_report.yaml",
		"fqbatch.prom",
	} {
		_, err := os.Stat(filepath.Join(out, name))
		c.Check(err, check.IsNil, check.Commentf("%s", name))
	}
	c.Check(o.Files, check.Not(check.HasLen), 0)

	s2, err := summary.Read(filepath.Join(out, "sample_summary.yaml"))
	c.Assert(err, check.IsNil)
	c.Check(s2.Reads, check.Equals, o.Summary.Reads)

	prom, err := os.ReadFile(filepath.Join(out, "fqbatch.prom"))
	c.Assert(err, check.IsNil)
	c.Check(string(prom), check.Matches, `(?s).*fqbatch_chunks_total\{op="qc",outcome="ok"\} 4.*`)
	c.Check(string(prom), check.Matches, `(?s).*fqbatch_reads\{stage="input"\} 1000.*`)
}

func (s *S) TestRunTrim(c *check.C) {
	p, input := setup(c, 1000)
	p.Config.Trim.Enabled = true

	o, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)
	c.Assert(o.Trimmed, check.NotNil)
	c.Assert(o.Comparison, check.NotNil)
	c.Check(o.Summary.Reads, check.Equals, int64(1000))
	c.Check(o.Comparison.ReadsBefore, check.Equals, int64(1000))
	c.Check(o.Comparison.ReadsAfter, check.Equals, o.Trimmed.Reads)
	c.Check(o.Comparison.Stats.ReadsIn, check.Equals, int64(1000))
	c.Check(o.Comparison.Stats.ReadsOut, check.Equals, o.Trimmed.Reads)

	c.Assert(o.ReadDiffs, check.HasLen, 10)
	c.Check(o.ReadDiffs[0].ID, check.Equals, "read0")
	c.Check(o.ReadDiffs[9].ID, check.Equals, "read9")
	for _, d := range o.ReadDiffs {
		if !d.Dropped {
			c.Check(d.Left+d.Right, check.HasLen, d.Length-d.TrimmedLength, check.Commentf("%s", d.ID))
		}
	}

	out := p.Config.Output.Dir
	c.Check(countReads(c, filepath.Join(out, "sample_trimmed.fastq")), check.Equals, o.Trimmed.Reads)
	for _, name := range []string{
		"sample_trimmed_summary.yaml",
		"sample_trimmed_report.txt",
		"sample_comparison.txt",
		"sample_read_comparison.txt",
		"reports/sample_chunk_002_trim.yaml",
		"trimmed/sample_chunk_002.fastq",
	} {
		_, err := os.Stat(filepath.Join(out, name))
		c.Check(err, check.IsNil, check.Commentf("%s", name))
	}
}

type failing struct {
	fail  map[int]bool
	calls atomic.Int32
	qc.Native
}

func (f *failing) Extract(ctx context.Context, ch chunk.Chunk) (*qc.Report, error) {
	f.calls.Add(1)
	if f.fail == nil || f.fail[ch.Index] {
		return nil, &qc.ExtractionError{Index: ch.Index, Path: ch.Path, Tool: "test", Err: errors.New("failed")}
	}
	return f.Native.Extract(ctx, ch)
}

type failTrim struct {
	trim.Trimmer
	index int
}

func (f failTrim) Trim(ctx context.Context, ch chunk.Chunk, dst string) (*trim.Result, error) {
	if ch.Index == f.index {
		return nil, &qc.ExtractionError{Index: ch.Index, Path: ch.Path, Tool: "test", Err: errors.New("failed")}
	}
	return f.Trimmer.Trim(ctx, ch, dst)
}

func (s *S) TestPartial(c *check.C) {
	p, input := setup(c, 1000)
	p.Extractor = &failing{fail: map[int]bool{3: true}}

	o, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)
	c.Check(o.Partial(), check.Equals, true)
	c.Check(o.Failed, check.DeepEquals, []int{3})
	c.Check(o.Summary.Missing, check.DeepEquals, []int{3})
	c.Check(o.Summary.Reads, check.Equals, int64(750))

	status, err := os.ReadFile(filepath.Join(p.Config.Output.Dir, "sample_status.txt"))
	c.Assert(err, check.IsNil)
	c.Check(strings.Count(string(status), "failed"), check.Not(check.Equals), 0)

	text, err := os.ReadFile(filepath.Join(p.Config.Output.Dir, "sample_report.txt"))
	c.Assert(err, check.IsNil)
	c.Check(strings.Contains(string(text), "PARTIAL"), check.Equals, true)
}

func (s *S) TestPartialTrimNotConcatenated(c *check.C) {
	p, input := setup(c, 1000)
	p.Config.Trim.Enabled = true
	p.Config.Chunk.Records = 400
	input2 := filepath.Join(filepath.Dir(input), "bad.fastq")
	fqtest.WriteFile(input2, fqtest.Reads(1000))
	p.Trimmer = failTrim{Trimmer: p.Trimmer, index: 2}

	o, err := p.Run(context.Background(), input2)
	c.Assert(err, check.IsNil)
	c.Check(o.Failed, check.DeepEquals, []int{2})
	c.Check(o.Trimmed.Partial, check.Equals, true)
	_, err = os.Stat(filepath.Join(p.Config.Output.Dir, "bad_trimmed.fastq"))
	c.Check(errors.Is(err, os.ErrNotExist), check.Equals, true)
}

func (s *S) TestNoSuccess(c *check.C) {
	p, input := setup(c, 600)
	p.Extractor = &failing{}

	o, err := p.Run(context.Background(), input)
	c.Check(errors.Is(err, batch.ErrNoSuccess), check.Equals, true)
	c.Assert(o, check.NotNil)
	c.Check(o.Failed, check.DeepEquals, []int{1, 2, 3})
	c.Check(o.Summary, check.IsNil)
}

func (s *S) TestResume(c *check.C) {
	p, input := setup(c, 1000)
	_, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)

	f := &failing{fail: map[int]bool{}}
	p.Extractor = f
	p.Config.Batch.Resume = true
	o, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)
	c.Check(f.calls.Load(), check.Equals, int32(0))
	c.Check(o.Summary.Reads, check.Equals, int64(1000))

	// A changed chunking invalidates the reports.
	p.Config.Chunk.Records = 500
	o, err = p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)
	c.Check(f.calls.Load(), check.Equals, int32(2))
	c.Check(o.Summary.Reads, check.Equals, int64(1000))
}

func (s *S) TestReport(c *check.C) {
	p, input := setup(c, 1000)
	p.Extractor = &failing{fail: map[int]bool{4: true}}
	run, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)

	o, err := p.Report(context.Background(), "sample")
	c.Assert(err, check.IsNil)
	c.Check(o.Summary.Reads, check.Equals, run.Summary.Reads)
	c.Check(o.Summary.Missing, check.DeepEquals, []int{4})

	_, err = p.Report(context.Background(), "other")
	c.Check(err, check.NotNil)
}

func (s *S) TestReportAfterRechunk(c *check.C) {
	p, input := setup(c, 1000)
	_, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)

	p.Config.Chunk.Records = 500
	_, err = p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)

	_, reports, _ := p.Dirs()
	for _, name := range []string{"sample_chunk_003_report.yaml", "sample_chunk_004_report.yaml"} {
		_, err = os.Stat(filepath.Join(reports, name))
		c.Check(errors.Is(err, os.ErrNotExist), check.Equals, true, check.Commentf("%s", name))
	}

	o, err := p.Report(context.Background(), "sample")
	c.Assert(err, check.IsNil)
	c.Check(o.Summary.Reads, check.Equals, int64(1000))
	c.Check(o.Summary.Chunks, check.DeepEquals, []int{1, 2})
	c.Check(o.Partial(), check.Equals, false)
}

func (s *S) TestReportFailedRerun(c *check.C) {
	p, input := setup(c, 1000)
	_, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)

	p.Extractor = &failing{fail: map[int]bool{2: true}}
	o, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)
	c.Check(o.Summary.Missing, check.DeepEquals, []int{2})

	o, err = p.Report(context.Background(), "sample")
	c.Assert(err, check.IsNil)
	c.Check(o.Summary.Missing, check.DeepEquals, []int{2})
	c.Check(o.Summary.Reads, check.Equals, int64(750))
}

func (s *S) TestReportSkipsBadReports(c *check.C) {
	p, input := setup(c, 1000)
	_, err := p.Run(context.Background(), input)
	c.Assert(err, check.IsNil)

	_, reports, _ := p.Dirs()
	err = os.WriteFile(filepath.Join(reports, "sample_chunk_003_report.yaml"), []byte("reads: [\n"), 0o644)
	c.Assert(err, check.IsNil)

	// A report for a chunk that is not in the manifest.
	stale, err := qc.ReadReport(filepath.Join(reports, "sample_chunk_001_report.yaml"))
	c.Assert(err, check.IsNil)
	stale.Index = 9
	stale.Chunk = filepath.Join(filepath.Dir(stale.Chunk), "sample_chunk_009.fastq")
	c.Assert(qc.WriteReport(filepath.Join(reports, "sample_chunk_009_report.yaml"), stale), check.IsNil)

	o, err := p.Report(context.Background(), "sample")
	c.Assert(err, check.IsNil)
	c.Check(o.Summary.Chunks, check.DeepEquals, []int{1, 2, 4})
	c.Check(o.Summary.Missing, check.DeepEquals, []int{3})
	c.Check(o.Summary.Reads, check.Equals, int64(750))
}

func (s *S) TestUnknownTool(c *check.C) {
	cfg := config.Default()
	cfg.QC.Tool = "fastqc"
	_, err := New(cfg, nil)
	c.Check(err, check.ErrorMatches, `pipeline: unknown qc tool "fastqc"`)
}
