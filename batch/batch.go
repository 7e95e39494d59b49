// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package batch runs an operation over the chunks of a split file with
// bounded parallelism.
//
// A failing chunk does not stop the others. Results are returned in chunk
// index order whatever the order of completion, and a batch fails only
// when no chunk succeeds.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/biogo/fqbatch/chunk"
)

// ErrNoSuccess is returned by Run when no chunk was processed successfully.
var ErrNoSuccess = errors.New("batch: no chunk succeeded")

// Func is an operation on a single chunk.
type Func[T any] func(ctx context.Context, c chunk.Chunk) (T, error)

// Options control a batch run.
type Options struct {
	// Op names the operation in logs and metrics.
	Op string

	// Workers is the maximum number of concurrent
	// operations. Zero uses GOMAXPROCS.
	Workers int

	// Timeout is the per-chunk time limit. Zero is no limit.
	Timeout time.Duration

	Metrics *Metrics
}

// Status is the outcome of the operation on one chunk.
type Status[T any] struct {
	Index   int
	Path    string
	Value   T
	Err     error
	Elapsed time.Duration
}

// OK returns whether the operation succeeded.
func (s Status[T]) OK() bool { return s.Err == nil }

// Batch holds the per-chunk outcomes of a run, ordered by chunk index.
type Batch[T any] struct {
	Op       string
	Statuses []Status[T]
}

// Values returns the values of the successful chunks in index order.
func (b *Batch[T]) Values() []T {
	var v []T
	for _, s := range b.Statuses {
		if s.OK() {
			v = append(v, s.Value)
		}
	}
	return v
}

// Succeeded returns the number of successful chunks.
func (b *Batch[T]) Succeeded() int {
	var n int
	for _, s := range b.Statuses {
		if s.OK() {
			n++
		}
	}
	return n
}

// Missing returns the indices of the failed chunks.
func (b *Batch[T]) Missing() []int {
	var idx []int
	for _, s := range b.Statuses {
		if !s.OK() {
			idx = append(idx, s.Index)
		}
	}
	return idx
}

// Indices returns the indices of all chunks in the batch.
func (b *Batch[T]) Indices() []int {
	idx := make([]int, len(b.Statuses))
	for i, s := range b.Statuses {
		idx[i] = s.Index
	}
	return idx
}

// Run calls fn once for each chunk. Chunks not started before ctx is
// done are reported with the context's error. Run returns ErrNoSuccess
// along with the batch if no chunk succeeded.
func Run[T any](ctx context.Context, chunks []chunk.Chunk, fn Func[T], opt Options) (*Batch[T], error) {
	logger := log.FromContext(ctx)
	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	sorted := append([]chunk.Chunk(nil), chunks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	b := &Batch[T]{Op: opt.Op, Statuses: make([]Status[T], len(sorted))}
	for i, c := range sorted {
		b.Statuses[i] = Status[T]{Index: c.Index, Path: c.Path}
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, c := range sorted {
		if ctx.Err() != nil {
			for j := i; j < len(sorted); j++ {
				b.Statuses[j].Err = ctx.Err()
				opt.Metrics.observe(opt.Op, outcomeCanceled, 0)
			}
			break
		}
		g.Go(func() error {
			run(ctx, &b.Statuses[i], c, fn, opt, logger)
			return nil
		})
	}
	g.Wait()

	n := b.Succeeded()
	logger.Info("batch complete", "op", opt.Op, "chunks", len(sorted), "succeeded", n, "failed", len(sorted)-n)
	if n == 0 {
		return b, ErrNoSuccess
	}
	return b, nil
}

func run[T any](ctx context.Context, st *Status[T], c chunk.Chunk, fn Func[T], opt Options, logger *log.Logger) {
	if err := ctx.Err(); err != nil {
		st.Err = err
		opt.Metrics.observe(opt.Op, outcomeCanceled, 0)
		return
	}
	if opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.Timeout)
		defer cancel()
	}

	opt.Metrics.start(opt.Op)
	start := time.Now()
	st.Value, st.Err = call(ctx, c, fn)
	st.Elapsed = time.Since(start)
	opt.Metrics.done(opt.Op)

	switch {
	case st.Err == nil:
		opt.Metrics.observe(opt.Op, outcomeOK, st.Elapsed)
		logger.Debug("chunk done", "op", opt.Op, "index", c.Index, "elapsed", st.Elapsed)
	case errors.Is(st.Err, context.Canceled):
		opt.Metrics.observe(opt.Op, outcomeCanceled, st.Elapsed)
		logger.Warn("chunk canceled", "op", opt.Op, "index", c.Index)
	default:
		opt.Metrics.observe(opt.Op, outcomeFailed, st.Elapsed)
		logger.Warn("chunk failed", "op", opt.Op, "index", c.Index, "err", st.Err)
	}
}

func call[T any](ctx context.Context, c chunk.Chunk, fn Func[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch: panic on chunk %d: %v", c.Index, r)
		}
	}()
	return fn(ctx, c)
}
