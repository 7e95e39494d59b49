// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trim

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/biogo/biogo/io/seqio/fastq"
	"github.com/biogo/biogo/seq/linear"

	"github.com/biogo/fqbatch/chunk"
	"github.com/biogo/fqbatch/internal/atomicfile"
	"github.com/biogo/fqbatch/qc"
)

// Stats holds the trimming counts of a chunk.
type Stats struct {
	ReadsIn  int64 `yaml:"reads_in"`
	ReadsOut int64 `yaml:"reads_out"`
	BasesIn  int64 `yaml:"bases_in"`
	BasesOut int64 `yaml:"bases_out"`

	TooShort   int64 `yaml:"too_short"`
	TooManyN   int64 `yaml:"too_many_n"`
	LowQuality int64 `yaml:"low_quality"`

	Unchanged int64 `yaml:"unchanged"`
	Minor     int64 `yaml:"minor"`
	Moderate  int64 `yaml:"moderate"`
	Major     int64 `yaml:"major"`
}

// Merge adds o to s.
func (s *Stats) Merge(o Stats) {
	s.ReadsIn += o.ReadsIn
	s.ReadsOut += o.ReadsOut
	s.BasesIn += o.BasesIn
	s.BasesOut += o.BasesOut
	s.TooShort += o.TooShort
	s.TooManyN += o.TooManyN
	s.LowQuality += o.LowQuality
	s.Unchanged += o.Unchanged
	s.Minor += o.Minor
	s.Moderate += o.Moderate
	s.Major += o.Major
}

// Categories returns the kept read counts by Category.
func (s Stats) Categories() [4]int64 {
	return [4]int64{s.Unchanged, s.Minor, s.Moderate, s.Major}
}

func (s *Stats) add(c Category) {
	switch c {
	case Unchanged:
		s.Unchanged++
	case Minor:
		s.Minor++
	case Moderate:
		s.Moderate++
	case Major:
		s.Major++
	}
}

// Result is the outcome of trimming one chunk.
type Result struct {
	Index  int    `yaml:"index"`
	Tool   string `yaml:"tool"`
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	Before *qc.Report `yaml:"before"`
	After  *qc.Report `yaml:"after"`
	Stats  Stats      `yaml:"stats"`
}

// Trimmer trims a chunk into dst.
type Trimmer interface {
	Trim(ctx context.Context, c chunk.Chunk, dst string) (*Result, error)
}

// Native trims reads in process.
type Native struct {
	Policy Policy

	// DuplicateSample is passed to the before and after
	// reports; see qc.Native.
	DuplicateSample int
}

// Trim trims the reads of c according to the policy, writing kept reads
// to dst. Failures are returned as *qc.ExtractionError.
func (n Native) Trim(ctx context.Context, c chunk.Chunk, dst string) (*Result, error) {
	sample := n.DuplicateSample
	switch {
	case sample == 0:
		sample = qc.DefaultDuplicateSample
	case sample < 0:
		sample = 0
	}
	res := &Result{
		Index:  c.Index,
		Tool:   "native",
		Input:  c.Path,
		Output: dst,
		Before: qc.NewReport(c.Index, c.Path, "native"),
		After:  qc.NewReport(c.Index, dst, "native"),
	}
	before := qc.NewAccumulator(res.Before, sample)
	after := qc.NewAccumulator(res.After, sample)

	err := atomicfile.Write(dst, func(w io.Writer) error {
		buf := bufio.NewWriter(w)
		fw := fastq.NewWriter(buf)
		var werr error
		err := qc.Each(ctx, c, func(s *linear.QSeq) {
			if werr != nil {
				return
			}
			before.Add(s)
			st := &res.Stats
			st.ReadsIn++
			st.BasesIn += int64(s.Len())

			lo, hi, reason := n.Policy.Trim(s.Seq)
			switch reason {
			case TooShort:
				st.TooShort++
				return
			case TooManyN:
				st.TooManyN++
				return
			case LowQuality:
				st.LowQuality++
				return
			}
			st.add(Categorize(s.Len() - (hi - lo)))
			s.Seq = s.Seq[lo:hi]
			st.ReadsOut++
			st.BasesOut += int64(s.Len())
			after.Add(s)
			_, werr = fw.Write(s)
		})
		if err != nil {
			return err
		}
		if werr != nil {
			return werr
		}
		return buf.Flush()
	})
	if err != nil {
		return nil, &qc.ExtractionError{Index: c.Index, Path: c.Path, Tool: "native trim", Err: err}
	}
	return res, nil
}

// WriteResult writes r to path as YAML.
func WriteResult(path string, r *Result) error {
	err := atomicfile.WriteYAML(path, r)
	if err != nil {
		return fmt.Errorf("trim: %w", err)
	}
	return nil
}

// ReadResult reads a result written by WriteResult.
func ReadResult(path string) (*Result, error) {
	var r Result
	err := atomicfile.ReadYAML(path, &r)
	if err != nil {
		return nil, fmt.Errorf("trim: %w", err)
	}
	if r.Before == nil || r.After == nil {
		return nil, fmt.Errorf("trim: %s: missing reports", path)
	}
	return &r, nil
}
