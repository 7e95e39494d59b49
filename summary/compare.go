// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package summary

import (
	"github.com/biogo/fqbatch/trim"
)

// Comparison describes the effect of trimming on a file.
type Comparison struct {
	Source string `yaml:"source"`

	ReadsBefore int64 `yaml:"reads_before"`
	ReadsAfter  int64 `yaml:"reads_after"`
	BasesBefore int64 `yaml:"bases_before"`
	BasesAfter  int64 `yaml:"bases_after"`

	// ReadRetention and BaseRetention are percentages.
	ReadRetention float64 `yaml:"read_retention"`
	BaseRetention float64 `yaml:"base_retention"`

	MeanLengthBefore  float64 `yaml:"mean_length_before"`
	MeanLengthAfter   float64 `yaml:"mean_length_after"`
	MeanQualityBefore float64 `yaml:"mean_quality_before"`
	MeanQualityAfter  float64 `yaml:"mean_quality_after"`
	Q30Before         float64 `yaml:"q30_before"`
	Q30After          float64 `yaml:"q30_after"`

	Stats trim.Stats `yaml:"stats"`
}

// QualityGain returns the change in mean base quality.
func (c *Comparison) QualityGain() float64 { return c.MeanQualityAfter - c.MeanQualityBefore }

// Compare returns the comparison of the summaries of a file
// before and after trimming.
func Compare(before, after *FileSummary, stats trim.Stats) *Comparison {
	return &Comparison{
		Source:            before.Source,
		ReadsBefore:       before.Reads,
		ReadsAfter:        after.Reads,
		BasesBefore:       before.Bases,
		BasesAfter:        after.Bases,
		ReadRetention:     percent(after.Reads, before.Reads),
		BaseRetention:     percent(after.Bases, before.Bases),
		MeanLengthBefore:  before.Length.Mean,
		MeanLengthAfter:   after.Length.Mean,
		MeanQualityBefore: before.Quality.Mean,
		MeanQualityAfter:  after.Quality.Mean,
		Q30Before:         before.Quality.Q30,
		Q30After:          after.Quality.Q30,
		Stats:             stats,
	}
}
