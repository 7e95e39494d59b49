// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trim

import (
	"bytes"
	"context"
	"fmt"

	"github.com/biogo/fqbatch/fqio"
)

// QualityRange holds the minimum, mean and maximum Phred quality of a read.
type QualityRange struct {
	Min  int     `yaml:"min"`
	Mean float64 `yaml:"mean"`
	Max  int     `yaml:"max"`
}

// ReadDiff describes how trimming changed a single read.
type ReadDiff struct {
	ID string `yaml:"id"`

	Length        int `yaml:"length"`
	TrimmedLength int `yaml:"trimmed_length"`

	// Dropped is set when the read is absent from the
	// trimmed output.
	Dropped bool `yaml:"dropped,omitempty"`

	// Left and Right are the bases clipped from the 5' and 3'
	// ends. Modified is set when the trimmed sequence is not
	// a contiguous part of the original.
	Left     string `yaml:"left,omitempty"`
	Right    string `yaml:"right,omitempty"`
	Modified bool   `yaml:"modified,omitempty"`

	Before QualityRange `yaml:"before"`
	After  QualityRange `yaml:"after"`
}

// Unchanged returns whether the read was kept as is.
func (d ReadDiff) Unchanged() bool {
	return !d.Dropped && !d.Modified && d.Left == "" && d.Right == ""
}

type read struct {
	id        string
	seq, qual []byte
}

// CompareReads pairs the first n reads of the FASTQ file original with
// their counterparts in trimmed, matching reads by identifier.
func CompareReads(ctx context.Context, original, trimmed string, n int) ([]ReadDiff, error) {
	if n <= 0 {
		return nil, nil
	}
	var sample []read
	want := make(map[string]int)
	err := scan(original, func(r *fqio.Record) bool {
		id := string(r.ID())
		want[id] = len(sample)
		sample = append(sample, read{id: id, seq: r.Seq, qual: r.Qual})
		return len(sample) < n
	})
	if err != nil || len(sample) == 0 {
		return nil, err
	}

	diffs := make([]ReadDiff, len(sample))
	for i, r := range sample {
		diffs[i] = ReadDiff{ID: r.id, Length: len(r.seq), Dropped: true, Before: qualityRange(r.qual)}
	}
	found := 0
	var i int
	err = scan(trimmed, func(t *fqio.Record) bool {
		i++
		if i%4096 == 0 && ctx.Err() != nil {
			return false
		}
		idx, ok := want[string(t.ID())]
		if !ok || !diffs[idx].Dropped {
			return true
		}
		diff(&diffs[idx], sample[idx], t)
		found++
		return found < len(sample)
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return diffs, nil
}

func diff(d *ReadDiff, orig read, t *fqio.Record) {
	d.Dropped = false
	d.TrimmedLength = len(t.Seq)
	d.After = qualityRange(t.Qual)
	i := bytes.Index(orig.seq, t.Seq)
	if i < 0 {
		d.Modified = true
		return
	}
	d.Left = string(orig.seq[:i])
	d.Right = string(orig.seq[i+len(t.Seq):])
}

// scan calls fn for each record of the file at path until fn returns false.
func scan(path string, fn func(*fqio.Record) bool) error {
	f, err := fqio.Open(path)
	if err != nil {
		return fmt.Errorf("trim: %w", err)
	}
	defer f.Close()
	sc := fqio.NewScanner(f, path)
	for sc.Next() {
		if !fn(sc.Record()) {
			break
		}
	}
	return sc.Error()
}

func qualityRange(qual []byte) QualityRange {
	if len(qual) == 0 {
		return QualityRange{}
	}
	q := QualityRange{Min: int(qual[0]) - 33, Max: int(qual[0]) - 33}
	var sum int
	for _, b := range qual {
		v := int(b) - 33
		q.Min = min(q.Min, v)
		q.Max = max(q.Max, v)
		sum += v
	}
	q.Mean = float64(sum) / float64(len(qual))
	return q
}
