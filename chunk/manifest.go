// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chunk

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/biogo/fqbatch/internal/atomicfile"
)

// Manifest records the result of a split.
type Manifest struct {
	Source  string `yaml:"source"`
	Stem    string `yaml:"stem"`
	Records int64  `yaml:"records"`
	Bytes   int64  `yaml:"bytes"`

	ChunkRecords int   `yaml:"chunk_records,omitempty"`
	ChunkBytes   int64 `yaml:"chunk_bytes,omitempty"`
	Compressed   bool  `yaml:"compressed,omitempty"`

	Chunks []Chunk `yaml:"chunks"`
}

// Indices returns the chunk indices of the manifest in order.
func (m *Manifest) Indices() []int {
	idx := make([]int, len(m.Chunks))
	for i, c := range m.Chunks {
		idx[i] = c.Index
	}
	return idx
}

// ManifestName returns the file name of the manifest for stem.
func ManifestName(stem string) string { return stem + "_manifest.yaml" }

// WriteManifest writes m to path as YAML.
func WriteManifest(path string, m *Manifest) error {
	err := atomicfile.WriteYAML(path, m)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	var m Manifest
	err := atomicfile.ReadYAML(path, &m)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	return &m, nil
}

// Discover returns the chunk files of stem present in dir, ordered by
// index. Only the Index and Path fields of the returned chunks are set.
func Discover(dir, stem string) ([]Chunk, error) {
	paths, err := doublestar.FilepathGlob(filepath.Join(dir, stem+"_chunk_*.fastq*"))
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	var chunks []Chunk
	for _, p := range paths {
		idx, ok := ParseIndex(filepath.Base(p), stem)
		if !ok {
			continue
		}
		chunks = append(chunks, Chunk{Index: idx, Path: p})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// ParseIndex returns the chunk index encoded in a chunk file name of stem.
func ParseIndex(name, stem string) (int, bool) {
	rest, ok := strings.CutPrefix(name, stem+"_chunk_")
	if !ok {
		return 0, false
	}
	num, ext, ok := strings.Cut(rest, ".")
	if !ok || (ext != "fastq" && ext != "fastq.gz") {
		return 0, false
	}
	idx, err := strconv.Atoi(num)
	if err != nil || idx < 1 {
		return 0, false
	}
	return idx, true
}

// Estimate is a chunk size recommendation.
type Estimate struct {
	Records      int64 // Estimated number of reads in the file.
	ChunkRecords int   // Recommended number of records per chunk.
	Chunks       int   // Estimated number of chunks.
}

const (
	readsPerMB       = 2500
	minChunkRecords  = 10000
	bytesPerMegabyte = 1 << 20
)

// EstimateRecords recommends a chunk size for a file of size bytes so that
// each chunk stays within targetMB megabytes of working memory. Typical
// short read FASTQ holds about 2500 reads per megabyte.
func EstimateRecords(size int64, targetMB int) Estimate {
	records := size * readsPerMB / bytesPerMegabyte
	n := int64(targetMB) * readsPerMB
	if n < minChunkRecords {
		n = minChunkRecords
	}
	e := Estimate{Records: records, ChunkRecords: int(n)}
	if records > 0 {
		e.Chunks = int((records + n - 1) / n)
	}
	return e
}
