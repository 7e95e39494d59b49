// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline runs chunked quality control and trimming of a FASTQ
// file from splitting through to reports and plots.
//
// Outputs for an input with stem S are written to the configured output
// directory:
//
//	chunks/S_chunk_NNN.fastq       chunk files and S_manifest.yaml
//	reports/S_chunk_NNN_report.yaml per-chunk reports (_trim.yaml when trimming)
//	trimmed/S_chunk_NNN.fastq      trimmed chunks
//	S_summary.yaml, S_report.txt   the file summary
//	S_status.txt                   per-chunk status table
//	S_trimmed.fastq                concatenated trimmed reads
//	S_<plot>.<format>              plots
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/biogo/fqbatch/batch"
	"github.com/biogo/fqbatch/chunk"
	"github.com/biogo/fqbatch/config"
	"github.com/biogo/fqbatch/fastp"
	"github.com/biogo/fqbatch/fqio"
	"github.com/biogo/fqbatch/internal/atomicfile"
	"github.com/biogo/fqbatch/qc"
	"github.com/biogo/fqbatch/render"
	"github.com/biogo/fqbatch/summary"
	"github.com/biogo/fqbatch/trim"
)

const lockFile = ".fqbatch.lock"

// Pipeline runs the stages of a job.
type Pipeline struct {
	Config *config.Config
	Log    *log.Logger

	Extractor qc.Extractor
	Trimmer   trim.Trimmer

	// Registry holds the run metrics.
	Registry *prometheus.Registry

	metrics *batch.Metrics
	reads   *prometheus.GaugeVec
}

// New returns a pipeline configured by cfg. The extractor and trimmer
// are chosen by cfg.QC.Tool.
func New(cfg *config.Config, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.Default()
	}
	p := &Pipeline{
		Config:   cfg,
		Log:      logger,
		Registry: prometheus.NewRegistry(),
	}
	switch cfg.QC.Tool {
	case "native":
		p.Extractor = qc.Native{DuplicateSample: cfg.QC.DuplicateSample}
		p.Trimmer = trim.Native{Policy: cfg.Trim.Policy(), DuplicateSample: cfg.QC.DuplicateSample}
	case "fastp":
		p.Extractor = fastp.Extractor{Path: cfg.QC.FastpPath, Threads: cfg.QC.FastpThreads}
		p.Trimmer = fastp.Trimmer{
			Path:       cfg.QC.FastpPath,
			Threads:    cfg.QC.FastpThreads,
			Policy:     cfg.Trim.Policy(),
			NBaseLimit: cfg.Trim.NBaseLimit,
		}
	default:
		return nil, fmt.Errorf("pipeline: unknown qc tool %q", cfg.QC.Tool)
	}
	p.metrics = batch.NewMetrics(p.Registry)
	p.reads = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fqbatch",
		Name:      "reads",
		Help:      "Number of reads summarized by stage.",
	}, []string{"stage"})
	p.Registry.MustRegister(p.reads)
	return p, nil
}

// Outcome describes the results of a run.
type Outcome struct {
	RunID    string
	Manifest *chunk.Manifest

	// Summary summarizes the input reads.
	// Trimmed and Comparison are set
	// only when trimming.
	Summary    *summary.FileSummary
	Trimmed    *summary.FileSummary
	Comparison *summary.Comparison

	// ReadDiffs compares a sample of reads
	// with their trimmed counterparts.
	ReadDiffs []trim.ReadDiff

	// Status is the rendered per-chunk status table.
	Status string
	Failed []int

	// Files lists the result files written.
	Files []string
}

// Partial returns whether some chunks are missing from the summary.
func (o *Outcome) Partial() bool {
	return o.Summary != nil && o.Summary.Partial
}

// Dirs returns the chunk, report and trimmed chunk directories.
func (p *Pipeline) Dirs() (chunks, reports, trimmed string) {
	out := p.Config.Output.Dir
	chunks = p.Config.Chunk.Dir
	if chunks == "" {
		chunks = filepath.Join(out, "chunks")
	}
	return chunks, filepath.Join(out, "reports"), filepath.Join(out, "trimmed")
}

func (p *Pipeline) path(stem, suffix string) string {
	return filepath.Join(p.Config.Output.Dir, stem+suffix)
}

// lock creates the output directory and takes its lock.
func (p *Pipeline) lock(ctx context.Context) (*flock.Flock, error) {
	out := p.Config.Output.Dir
	_, reports, trimmed := p.Dirs()
	for _, dir := range []string{out, reports, trimmed} {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	l := flock.New(filepath.Join(out, lockFile))
	ok, err := l.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("pipeline: lock %s: %w", out, err)
	}
	if !ok {
		return nil, fmt.Errorf("pipeline: could not lock %s", out)
	}
	return l, nil
}

// Split splits input into chunks without processing them.
func (p *Pipeline) Split(ctx context.Context, input string) (*chunk.Manifest, error) {
	return p.split(log.WithContext(ctx, p.Log), input)
}

func (p *Pipeline) split(ctx context.Context, input string) (*chunk.Manifest, error) {
	chunks, _, _ := p.Dirs()
	return chunk.Split(ctx, input, chunk.Config{
		Dir:      chunks,
		Records:  p.Config.Chunk.Records,
		Bytes:    p.Config.Chunk.Bytes,
		Compress: p.Config.Chunk.Compress,
	})
}

// Run processes input. Failed chunks do not fail the run; the returned
// summary is then marked partial. Run returns batch.ErrNoSuccess, with
// the outcome, when no chunk succeeded.
func (p *Pipeline) Run(ctx context.Context, input string) (*Outcome, error) {
	o := &Outcome{RunID: uuid.NewString()}
	logger := p.Log.With("run", o.RunID)
	ctx = log.WithContext(ctx, logger)
	start := time.Now()

	l, err := p.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Unlock()

	logger.Info("splitting", "input", input)
	o.Manifest, err = p.split(ctx, input)
	if err != nil {
		return nil, err
	}
	logger.Info("split", "records", o.Manifest.Records, "chunks", len(o.Manifest.Chunks))
	err = p.clean(ctx, o.Manifest)
	if err != nil {
		return nil, err
	}

	if p.Config.Trim.Enabled {
		err = p.runTrim(ctx, o)
	} else {
		err = p.runQC(ctx, o)
	}
	if err != nil {
		return o, err
	}

	if p.Config.Metrics.Textfile != "" {
		err = prometheus.WriteToTextfile(p.Config.Metrics.Textfile, p.Registry)
		if err != nil {
			return o, fmt.Errorf("pipeline: %w", err)
		}
		o.Files = append(o.Files, p.Config.Metrics.Textfile)
	}
	logger.Info("run complete", "elapsed", time.Since(start).Round(time.Millisecond), "partial", o.Partial())
	return o, nil
}

func (p *Pipeline) options(op string) batch.Options {
	return batch.Options{
		Op:      op,
		Workers: p.Config.Batch.Workers,
		Timeout: p.Config.Batch.Timeout,
		Metrics: p.metrics,
	}
}

func (p *Pipeline) runQC(ctx context.Context, o *Outcome) error {
	_, reports, _ := p.Dirs()
	b, err := batch.Run(ctx, o.Manifest.Chunks, func(ctx context.Context, c chunk.Chunk) (*qc.Report, error) {
		path := filepath.Join(reports, qc.ReportName(c.Path, "report"))
		if p.Config.Batch.Resume {
			r, err := qc.ReadReport(path)
			if err == nil && r.Reads == c.Records && r.Chunk == c.Path {
				log.FromContext(ctx).Debug("reusing report", "chunk", c.Index, "path", path)
				return r, nil
			}
		}
		r, err := p.Extractor.Extract(ctx, c)
		if err != nil {
			remove(ctx, path)
			return nil, err
		}
		return r, qc.WriteReport(path, r)
	}, p.options("qc"))
	werr := p.writeStatus(o, b.Table(), b.Missing())
	if err != nil {
		return err
	}
	if werr != nil {
		return werr
	}

	o.Summary, err = p.summarize(ctx, o.Manifest, b.Values(), "", o)
	if err != nil {
		return err
	}
	if p.Config.Output.Plots {
		p.plot(ctx, o, func(r render.Renderer) ([]string, error) { return r.Summary(o.Summary) })
	}
	return nil
}

func (p *Pipeline) runTrim(ctx context.Context, o *Outcome) error {
	_, reports, trimmed := p.Dirs()
	b, err := batch.Run(ctx, o.Manifest.Chunks, func(ctx context.Context, c chunk.Chunk) (*trim.Result, error) {
		path := filepath.Join(reports, qc.ReportName(c.Path, "trim"))
		dst := filepath.Join(trimmed, trimmedName(c.Path))
		if p.Config.Batch.Resume {
			r, err := trim.ReadResult(path)
			if err == nil && r.Input == c.Path && r.Before.Reads == c.Records && exists(r.Output) {
				log.FromContext(ctx).Debug("reusing trim result", "chunk", c.Index, "path", path)
				return r, nil
			}
		}
		r, err := p.Trimmer.Trim(ctx, c, dst)
		if err != nil {
			remove(ctx, path)
			remove(ctx, dst)
			return nil, err
		}
		return r, trim.WriteResult(path, r)
	}, p.options("trim"))
	werr := p.writeStatus(o, b.Table(), b.Missing())
	if err != nil {
		return err
	}
	if werr != nil {
		return werr
	}

	results := b.Values()
	var (
		before, after []*qc.Report
		stats         trim.Stats
	)
	for _, r := range results {
		before = append(before, r.Before)
		after = append(after, r.After)
		stats.Merge(r.Stats)
	}
	o.Summary, err = p.summarize(ctx, o.Manifest, before, "", o)
	if err != nil {
		return err
	}
	o.Trimmed, err = p.summarize(ctx, o.Manifest, after, "_trimmed", o)
	if err != nil {
		return err
	}
	err = p.compare(o, stats)
	if err != nil {
		return err
	}
	err = p.compareReads(ctx, o, results)
	if err != nil {
		return err
	}

	if len(o.Failed) == 0 {
		path := p.path(o.Manifest.Stem, "_trimmed.fastq")
		err = concat(path, results)
		if err != nil {
			return err
		}
		o.Files = append(o.Files, path)
	} else {
		log.FromContext(ctx).Warn("not concatenating trimmed chunks", "failed", o.Failed)
	}

	if p.Config.Output.Plots {
		p.plot(ctx, o, func(r render.Renderer) ([]string, error) {
			paths, err := r.Summary(o.Trimmed)
			if err != nil {
				return paths, err
			}
			more, err := r.Comparison(o.Summary, o.Trimmed, o.Comparison)
			return append(paths, more...), err
		})
	}
	return nil
}

func (p *Pipeline) compare(o *Outcome, stats trim.Stats) error {
	o.Comparison = summary.Compare(o.Summary, o.Trimmed, stats)
	path := p.path(o.Manifest.Stem, "_comparison.txt")
	err := atomicfile.Write(path, func(w io.Writer) error {
		return summary.WriteComparison(w, o.Comparison)
	})
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	o.Files = append(o.Files, path)
	return nil
}

// compareReads writes the per-read differences of a sample of reads
// from the first trimmed chunk.
func (p *Pipeline) compareReads(ctx context.Context, o *Outcome, results []*trim.Result) error {
	n := p.Config.Trim.CompareReads
	if n <= 0 || len(results) == 0 {
		return nil
	}
	diffs, err := trim.CompareReads(ctx, results[0].Input, results[0].Output, n)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	o.ReadDiffs = diffs
	path := p.path(o.Manifest.Stem, "_read_comparison.txt")
	err = atomicfile.Write(path, func(w io.Writer) error {
		return summary.WriteReadComparison(w, diffs)
	})
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	o.Files = append(o.Files, path)
	return nil
}

func (p *Pipeline) writeStatus(o *Outcome, table string, failed []int) error {
	o.Status = table
	o.Failed = failed
	path := p.path(o.Manifest.Stem, "_status.txt")
	err := atomicfile.Write(path, func(w io.Writer) error {
		_, err := io.WriteString(w, table+"\n")
		return err
	})
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	o.Files = append(o.Files, path)
	return nil
}

// summarize aggregates reports and writes the summary files with the
// given name suffix. A partial aggregation is logged and not returned
// as an error.
func (p *Pipeline) summarize(ctx context.Context, m *chunk.Manifest, reports []*qc.Report, suffix string, o *Outcome) (*summary.FileSummary, error) {
	logger := log.FromContext(ctx)
	s, err := summary.Aggregate(m.Source, reports, m.Indices())
	var aerr *summary.AggregationError
	switch {
	case errors.As(err, &aerr) && s != nil:
		logger.Warn("partial summary", "missing", aerr.Missing)
	case err != nil:
		return nil, err
	}

	stage := "input"
	if suffix != "" {
		stage = strings.TrimPrefix(suffix, "_")
	}
	p.reads.WithLabelValues(stage).Set(float64(s.Reads))

	path := p.path(m.Stem+suffix, "_summary.yaml")
	err = summary.Write(path, s)
	if err != nil {
		return nil, err
	}
	o.Files = append(o.Files, path)

	path = p.path(m.Stem+suffix, "_report.txt")
	err = atomicfile.Write(path, func(w io.Writer) error {
		return summary.WriteText(w, s)
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	o.Files = append(o.Files, path)
	logger.Info("summary written", "reads", s.Reads, "bases", s.Bases, "path", path)
	return s, nil
}

// plot writes plots. Rendering failures are logged since the
// summaries have already been written.
func (p *Pipeline) plot(ctx context.Context, o *Outcome, fn func(render.Renderer) ([]string, error)) {
	paths, err := fn(render.Renderer{
		Dir:    p.Config.Output.Dir,
		Stem:   o.Manifest.Stem,
		Format: p.Config.Output.Format,
	})
	o.Files = append(o.Files, paths...)
	if err != nil {
		log.FromContext(ctx).Warn("plotting failed", "err", err)
	}
}

// trimmedName returns the name of the trimmed output of a chunk.
// Trimmed chunks are always written uncompressed.
func trimmedName(chunk string) string {
	return strings.TrimSuffix(filepath.Base(chunk), ".gz")
}

// concat writes the trimmed chunks of results to path in index order.
func concat(path string, results []*trim.Result) error {
	err := atomicfile.Write(path, func(w io.Writer) error {
		for _, r := range results {
			f, err := fqio.Open(r.Output)
			if err != nil {
				return err
			}
			_, err = io.Copy(w, f)
			f.Close()
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// clean removes the chunk reports and trimmed chunks of the stem of m
// that do not belong to one of its chunks.
func (p *Pipeline) clean(ctx context.Context, m *chunk.Manifest) error {
	_, reports, trimmed := p.Dirs()
	keep := make(map[string]bool)
	for _, c := range m.Chunks {
		keep[filepath.Join(reports, qc.ReportName(c.Path, "report"))] = true
		keep[filepath.Join(reports, qc.ReportName(c.Path, "trim"))] = true
		keep[filepath.Join(trimmed, trimmedName(c.Path))] = true
	}
	for _, pattern := range []string{
		filepath.Join(reports, m.Stem+"_chunk_*.yaml"),
		filepath.Join(trimmed, m.Stem+"_chunk_*.fastq"),
	} {
		paths, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		for _, path := range paths {
			if keep[path] {
				continue
			}
			err = os.Remove(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("pipeline: remove stale output: %w", err)
			}
			log.FromContext(ctx).Debug("removed stale output", "path", path)
		}
	}
	return nil
}

// remove removes the output of a failed chunk so that
// an earlier result is not taken for it.
func remove(ctx context.Context, path string) {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.FromContext(ctx).Warn("could not remove output", "path", path, "err", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
