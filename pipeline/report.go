// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/biogo/fqbatch/chunk"
	"github.com/biogo/fqbatch/qc"
	"github.com/biogo/fqbatch/render"
	"github.com/biogo/fqbatch/trim"
)

// Report rebuilds the summary of stem from the chunk reports left in the
// output directory by an earlier run. Chunks listed in the manifest
// without a readable report matching the chunk are reported missing.
func (p *Pipeline) Report(ctx context.Context, stem string) (*Outcome, error) {
	o := &Outcome{RunID: uuid.NewString()}
	logger := p.Log.With("run", o.RunID)
	ctx = log.WithContext(ctx, logger)

	l, err := p.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Unlock()

	o.Manifest, err = p.manifest(stem)
	if err != nil {
		return nil, err
	}

	chunks := make(map[int]chunk.Chunk)
	for _, c := range o.Manifest.Chunks {
		chunks[c.Index] = c
	}
	_, reports, _ := p.Dirs()
	if !p.Config.Trim.Enabled {
		paths, err := p.reportFiles(reports, stem, "report")
		if err != nil {
			return nil, err
		}
		var rs []*qc.Report
		for _, path := range paths {
			r, err := qc.ReadReport(path)
			if err != nil {
				logger.Warn("skipping unreadable report", "path", path, "err", err)
				continue
			}
			if !current(chunks, r.Index, r.Chunk, r.Reads) {
				logger.Warn("skipping stale report", "path", path)
				continue
			}
			rs = append(rs, r)
		}
		o.Summary, err = p.summarize(ctx, o.Manifest, rs, "", o)
		if err != nil {
			return nil, err
		}
		if p.Config.Output.Plots {
			p.plot(ctx, o, func(r render.Renderer) ([]string, error) { return r.Summary(o.Summary) })
		}
		return o, nil
	}

	paths, err := p.reportFiles(reports, stem, "trim")
	if err != nil {
		return nil, err
	}
	var (
		before, after []*qc.Report
		stats         trim.Stats
	)
	for _, path := range paths {
		r, err := trim.ReadResult(path)
		if err != nil {
			logger.Warn("skipping unreadable trim result", "path", path, "err", err)
			continue
		}
		if !current(chunks, r.Index, r.Input, r.Before.Reads) {
			logger.Warn("skipping stale trim result", "path", path)
			continue
		}
		before = append(before, r.Before)
		after = append(after, r.After)
		stats.Merge(r.Stats)
	}
	o.Summary, err = p.summarize(ctx, o.Manifest, before, "", o)
	if err != nil {
		return nil, err
	}
	o.Trimmed, err = p.summarize(ctx, o.Manifest, after, "_trimmed", o)
	if err != nil {
		return nil, err
	}
	err = p.compare(o, stats)
	if err != nil {
		return nil, err
	}
	if p.Config.Output.Plots {
		p.plot(ctx, o, func(r render.Renderer) ([]string, error) {
			return r.Comparison(o.Summary, o.Trimmed, o.Comparison)
		})
	}
	return o, nil
}

// manifest returns the manifest of stem, falling back to the chunk
// files present when no manifest was written.
func (p *Pipeline) manifest(stem string) (*chunk.Manifest, error) {
	dir, _, _ := p.Dirs()
	m, err := chunk.ReadManifest(filepath.Join(dir, chunk.ManifestName(stem)))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	chunks, err := chunk.Discover(dir, stem)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("pipeline: no chunks of %s in %s", stem, dir)
	}
	p.Log.Warn("no manifest, using chunk files", "stem", stem, "chunks", len(chunks))
	return &chunk.Manifest{Source: stem, Stem: stem, Chunks: chunks}, nil
}

func (p *Pipeline) reportFiles(dir, stem, suffix string) ([]string, error) {
	paths, err := doublestar.FilepathGlob(filepath.Join(dir, stem+"_chunk_*_"+suffix+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// current returns whether a report of reads reads for chunk index idx
// at path belongs to the chunk of that index. Chunks found without a
// manifest have no record count to check.
func current(chunks map[int]chunk.Chunk, idx int, path string, reads int64) bool {
	c, ok := chunks[idx]
	if !ok || c.Path != path {
		return false
	}
	return c.Records == 0 || c.Records == reads
}
