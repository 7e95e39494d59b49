// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qc

import (
	"context"
	"fmt"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fastq"
	"github.com/biogo/biogo/seq/linear"

	"github.com/biogo/fqbatch/chunk"
	"github.com/biogo/fqbatch/fqio"
	"github.com/biogo/fqbatch/internal/atomicfile"
)

// Extractor produces a Report for a chunk.
type Extractor interface {
	Extract(ctx context.Context, c chunk.Chunk) (*Report, error)
}

// ExtractionError is returned when a chunk could not be processed.
type ExtractionError struct {
	Index int
	Path  string
	Tool  string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("qc: %s failed on chunk %d (%s): %v", e.Tool, e.Index, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Native extracts reports in process.
type Native struct {
	// DuplicateSample is the number of reads per chunk examined for
	// duplication. Zero uses DefaultDuplicateSample and a negative
	// value disables duplication.
	DuplicateSample int
}

// Extract returns the report for c.
func (n Native) Extract(ctx context.Context, c chunk.Chunk) (*Report, error) {
	sample := n.DuplicateSample
	switch {
	case sample == 0:
		sample = DefaultDuplicateSample
	case sample < 0:
		sample = 0
	}
	r := NewReport(c.Index, c.Path, "native")
	acc := NewAccumulator(r, sample)
	err := Each(ctx, c, acc.Add)
	if err != nil {
		return nil, &ExtractionError{Index: c.Index, Path: c.Path, Tool: "native", Err: err}
	}
	return r, nil
}

// Each calls fn for each read of the chunk c.
func Each(ctx context.Context, c chunk.Chunk, fn func(*linear.QSeq)) error {
	f, err := fqio.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := seqio.NewScanner(fastq.NewReader(f, linear.NewQSeq("", nil, alphabet.DNA, alphabet.Sanger)))
	for i := 1; sc.Next(); i++ {
		if i%4096 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		fn(sc.Seq().(*linear.QSeq))
	}
	return sc.Error()
}

// WriteReport writes r to path as YAML.
func WriteReport(path string, r *Report) error {
	err := atomicfile.WriteYAML(path, r)
	if err != nil {
		return fmt.Errorf("qc: %w", err)
	}
	return nil
}

// ReadReport reads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	var r Report
	err := atomicfile.ReadYAML(path, &r)
	if err != nil {
		return nil, fmt.Errorf("qc: %w", err)
	}
	return &r, nil
}
