// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fastp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/biogo/fqbatch/chunk"
	"github.com/biogo/fqbatch/qc"
	"github.com/biogo/fqbatch/trim"
)

// Extractor extracts chunk reports by running fastp without filtering.
type Extractor struct {
	// Path is the fastp executable. If empty
	// fastp is looked up in the PATH.
	Path    string
	Threads int
}

// Extract runs fastp on c and returns its report. Failures are returned
// as *qc.ExtractionError.
func (e Extractor) Extract(ctx context.Context, c chunk.Chunk) (*qc.Report, error) {
	sum, err := e.run(ctx, c)
	if err != nil {
		return nil, &qc.ExtractionError{Index: c.Index, Path: c.Path, Tool: "fastp", Err: err}
	}
	return sum.Before.Report(c.Index, c.Path, sum.DuplicationRate), nil
}

func (e Extractor) run(ctx context.Context, c chunk.Chunk) (*Summary, error) {
	dir, err := os.MkdirTemp("", "fqbatch-fastp-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	f := Fastp{
		Cmd:                  e.Path,
		In:                   c.Path,
		JSON:                 filepath.Join(dir, "fastp.json"),
		HTML:                 filepath.Join(dir, "fastp.html"),
		Threads:              e.Threads,
		DisableAdapter:       true,
		DisableQualityFilter: true,
		DisableLengthFilter:  true,
	}
	return runParse(ctx, f, dir)
}

func runParse(ctx context.Context, f Fastp, dir string) (*Summary, error) {
	err := run(ctx, f, dir)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.JSON)
	if err != nil {
		return nil, err
	}
	return ParseReport(b)
}

// Trimmer trims chunks with fastp.
type Trimmer struct {
	Path    string
	Threads int

	// Policy is translated to fastp options. Leading and
	// trailing trimming use a window of one base and MaxN
	// is replaced by NBaseLimit.
	Policy     trim.Policy
	NBaseLimit int
}

// Trim runs fastp on c, writing trimmed reads to dst. Failures are
// returned as *qc.ExtractionError.
func (t Trimmer) Trim(ctx context.Context, c chunk.Chunk, dst string) (*trim.Result, error) {
	res, err := t.trim(ctx, c, dst)
	if err != nil {
		return nil, &qc.ExtractionError{Index: c.Index, Path: c.Path, Tool: "fastp trim", Err: err}
	}
	return res, nil
}

func (t Trimmer) trim(ctx context.Context, c chunk.Chunk, dst string) (*trim.Result, error) {
	dir, err := os.MkdirTemp("", "fqbatch-fastp-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".fastp")
	defer os.Remove(tmp)

	p := t.Policy
	f := Fastp{
		Cmd:            t.Path,
		In:             c.Path,
		Out:            tmp,
		JSON:           filepath.Join(dir, "fastp.json"),
		HTML:           filepath.Join(dir, "fastp.html"),
		Threads:        t.Threads,
		Adapter:        p.Adapter,
		DisableAdapter: p.Adapter == "",
		LengthRequired: p.MinLength,
		NBaseLimit:     t.NBaseLimit,
	}
	if p.Leading > 0 {
		f.CutFront, f.CutFrontWindow, f.CutFrontMeanQuality = true, 1, p.Leading
	}
	if p.Trailing > 0 {
		f.CutTail, f.CutTailWindow, f.CutTailMeanQuality = true, 1, p.Trailing
	}
	if p.Window > 0 {
		f.CutRight, f.CutRightWindow, f.CutRightMeanQuality = true, p.Window, int(p.WindowQuality)
	}

	sum, err := runParse(ctx, f, dir)
	if err != nil {
		return nil, err
	}
	err = os.Rename(tmp, dst)
	if err != nil {
		return nil, fmt.Errorf("fastp: %w", err)
	}
	return &trim.Result{
		Index:  c.Index,
		Tool:   "fastp",
		Input:  c.Path,
		Output: dst,
		Before: sum.Before.Report(c.Index, c.Path, sum.DuplicationRate),
		After:  sum.After.Report(c.Index, dst, sum.DuplicationRate),
		Stats: trim.Stats{
			ReadsIn:    sum.Before.Reads,
			ReadsOut:   sum.After.Reads,
			BasesIn:    sum.Before.Bases,
			BasesOut:   sum.After.Bases,
			TooShort:   sum.Filtering.TooShort,
			TooManyN:   sum.Filtering.TooManyN,
			LowQuality: sum.Filtering.LowQuality,
		},
	}, nil
}
