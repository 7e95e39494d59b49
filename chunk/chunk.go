// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chunk splits FASTQ files into record-aligned chunk files.
//
// Concatenating the chunks of a split in index order reproduces the
// records of the input byte for byte. Chunk files are named
// <stem>_chunk_NNN.fastq with a 1-based index and are written to a
// temporary file before being renamed into place, so an interrupted
// split never leaves a partially written chunk under its final name.
package chunk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/biogo/hts/bgzf"
	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"

	"github.com/biogo/fqbatch/fqio"
)

// Chunk describes one chunk file of a split input.
type Chunk struct {
	Index   int    `yaml:"index"`
	Path    string `yaml:"path"`
	Records int64  `yaml:"records"`

	// Offset and Length give the byte range
	// of the chunk in the uncompressed input.
	Offset int64 `yaml:"offset"`
	Length int64 `yaml:"length"`
}

// Config holds the chunking policy. A chunk is closed when it holds
// Records records or when the next record would take it beyond Bytes
// bytes, whichever comes first. At least one of the limits must be set.
type Config struct {
	Dir      string
	Records  int
	Bytes    int64
	Compress bool
}

// Name returns the file name of the chunk with the given index.
func Name(stem string, index int, compressed bool) string {
	name := fmt.Sprintf("%s_chunk_%03d.fastq", stem, index)
	if compressed {
		name += ".gz"
	}
	return name
}

const lockFile = ".fqbatch-chunk.lock"

// Split splits the FASTQ file at path into chunks in cfg.Dir. Existing
// chunks of the same stem are replaced. Split returns an *fqio.InputFormatError
// if a record boundary cannot be found, in which case no chunk files are
// left behind.
func Split(ctx context.Context, path string, cfg Config) (*Manifest, error) {
	if cfg.Records <= 0 && cfg.Bytes <= 0 {
		return nil, errors.New("chunk: no chunk size limit")
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	logger := log.FromContext(ctx)

	err := os.MkdirAll(cfg.Dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.Dir, lockFile))
	ok, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("chunk: lock %s: %w", cfg.Dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("chunk: could not lock %s", cfg.Dir)
	}
	defer lock.Unlock()

	stem := fqio.Stem(path)
	err = removeStale(cfg.Dir, stem)
	if err != nil {
		return nil, err
	}

	in, err := fqio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	defer in.Close()

	m := &Manifest{
		Source:       path,
		Stem:         stem,
		ChunkRecords: cfg.Records,
		ChunkBytes:   cfg.Bytes,
		Compressed:   cfg.Compress,
	}

	var (
		w   *writer
		cur Chunk
	)
	fail := func(err error) (*Manifest, error) {
		if w != nil {
			w.abort()
		}
		for _, c := range m.Chunks {
			os.Remove(c.Path)
		}
		return nil, err
	}

	sc := fqio.NewScanner(in, path)
	for sc.Next() {
		rec := sc.Record()
		if rec.Number%4096 == 0 && ctx.Err() != nil {
			return fail(ctx.Err())
		}
		if w != nil && full(cfg, cur, len(rec.Raw)) {
			err = w.commit()
			if err != nil {
				return fail(err)
			}
			w = nil
			m.Chunks = append(m.Chunks, cur)
			logger.Debug("wrote chunk", "index", cur.Index, "records", cur.Records, "path", cur.Path)
		}
		if w == nil {
			cur = Chunk{
				Index:  len(m.Chunks) + 1,
				Path:   filepath.Join(cfg.Dir, Name(stem, len(m.Chunks)+1, cfg.Compress)),
				Offset: rec.Offset,
			}
			w, err = newWriter(cur.Path, cfg.Compress)
			if err != nil {
				return fail(err)
			}
		}
		_, err = w.Write(rec.Raw)
		if err != nil {
			return fail(err)
		}
		cur.Records++
		cur.Length += int64(len(rec.Raw))
		m.Records++
		m.Bytes += int64(len(rec.Raw))
	}
	if err := sc.Error(); err != nil {
		return fail(err)
	}
	if w != nil {
		err = w.commit()
		if err != nil {
			return fail(err)
		}
		w = nil
		m.Chunks = append(m.Chunks, cur)
		logger.Debug("wrote chunk", "index", cur.Index, "records", cur.Records, "path", cur.Path)
	}

	err = WriteManifest(filepath.Join(cfg.Dir, ManifestName(stem)), m)
	if err != nil {
		return fail(err)
	}
	logger.Info("split input", "path", path, "records", m.Records, "chunks", len(m.Chunks))
	return m, nil
}

func full(cfg Config, c Chunk, next int) bool {
	if cfg.Records > 0 && c.Records >= int64(cfg.Records) {
		return true
	}
	return cfg.Bytes > 0 && c.Length+int64(next) > cfg.Bytes
}

func removeStale(dir, stem string) error {
	stale, err := Discover(dir, stem)
	if err != nil {
		return err
	}
	for _, c := range stale {
		err = os.Remove(c.Path)
		if err != nil {
			return fmt.Errorf("chunk: remove stale chunk: %w", err)
		}
	}
	err = os.Remove(filepath.Join(dir, ManifestName(stem)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("chunk: remove stale manifest: %w", err)
	}
	return nil
}

// writer writes a chunk to a temporary file that is renamed
// to its final name on commit.
type writer struct {
	path string
	f    *os.File
	buf  *bufio.Writer
	bgzf *bgzf.Writer
	io.Writer
}

func newWriter(path string, compress bool) (*writer, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	err = f.Chmod(0o644)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("chunk: %w", err)
	}
	w := &writer{path: path, f: f, buf: bufio.NewWriterSize(f, 1<<16)}
	w.Writer = w.buf
	if compress {
		w.bgzf = bgzf.NewWriter(w.buf, 1)
		w.Writer = w.bgzf
	}
	return w, nil
}

func (w *writer) commit() error {
	if w.bgzf != nil {
		if err := w.bgzf.Close(); err != nil {
			w.abort()
			return fmt.Errorf("chunk: %w", err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		w.abort()
		return fmt.Errorf("chunk: %w", err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return fmt.Errorf("chunk: %w", err)
	}
	if err := os.Rename(w.f.Name(), w.path); err != nil {
		os.Remove(w.f.Name())
		return fmt.Errorf("chunk: %w", err)
	}
	return nil
}

func (w *writer) abort() {
	w.f.Close()
	os.Remove(w.f.Name())
}
