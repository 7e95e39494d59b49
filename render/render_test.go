// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/biogo/alphabet"
	"gopkg.in/check.v1"

	"github.com/biogo/fqbatch/qc"
	"github.com/biogo/fqbatch/summary"
	"github.com/biogo/fqbatch/trim"
)

// Tests
func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

func fileSummary(c *check.C, reads ...string) *summary.FileSummary {
	r := qc.NewReport(1, "", "native")
	acc := qc.NewAccumulator(r, 0)
	for _, rd := range reads {
		ql := make(alphabet.QLetters, len(rd))
		for i := range rd {
			ql[i] = alphabet.QLetter{L: alphabet.Letter(rd[i]), Q: alphabet.Qphred(10 + (i*7)%30)}
		}
		acc.AddLetters(ql)
	}
	s, err := summary.Aggregate("reads.fastq", []*qc.Report{r}, nil)
	c.Assert(err, check.Equals, nil)
	return s
}

func checkFiles(c *check.C, paths []string, want ...string) {
	c.Assert(paths, check.HasLen, len(want))
	for i, p := range paths {
		c.Check(filepath.Base(p), check.Equals, want[i])
		fi, err := os.Stat(p)
		c.Assert(err, check.Equals, nil)
		c.Check(fi.Size() > 0, check.Equals, true, check.Commentf("%s", p))
	}
}

func (s *S) TestSummary(c *check.C) {
	sum := fileSummary(c, "ACGTACGTACGTNACG", "GGGCCCAAATTTGG", "ACGTTTGCAAGGCCTTAA")
	r := Renderer{Dir: c.MkDir(), Stem: "reads"}
	paths, err := r.Summary(sum)
	c.Assert(err, check.Equals, nil)
	checkFiles(c, paths,
		"reads_per_base_quality.png",
		"reads_per_base_content.png",
		"reads_gc_distribution.png",
		"reads_quality_distribution.png",
	)
}

func (s *S) TestComparison(c *check.C) {
	before := fileSummary(c, "ACGTACGTACGTNACG", "GGGCCCAAATTTGG", "ACGTTTGCAAGGCCTTAA")
	after := fileSummary(c, "ACGTACGTACGT", "GGGCCCAAATTTGG", "ACGTTTGCAAGG")
	cmp := summary.Compare(before, after, trim.Stats{Unchanged: 1, Moderate: 1, Major: 1})

	r := Renderer{Dir: c.MkDir(), Stem: "reads", Format: "svg"}
	paths, err := r.Comparison(before, after, cmp)
	c.Assert(err, check.Equals, nil)
	checkFiles(c, paths,
		"reads_length_comparison.svg",
		"reads_quality_comparison.svg",
		"reads_trim_categories.svg",
	)

	// Nothing kept means no category chart.
	paths, err = r.Comparison(before, after, summary.Compare(before, after, trim.Stats{}))
	c.Assert(err, check.Equals, nil)
	c.Check(paths, check.HasLen, 2)
}

func (s *S) TestNoData(c *check.C) {
	_, err := PerBaseQuality(&summary.FileSummary{})
	c.Check(err, check.Equals, errNoData)
	_, err = GCDistribution(&summary.FileSummary{})
	c.Check(err, check.Equals, errNoData)
	_, err = TrimCategories(trim.Stats{})
	c.Check(err, check.Equals, errNoData)

	paths, err := Renderer{Dir: c.MkDir(), Stem: "empty"}.Summary(&summary.FileSummary{})
	c.Check(err, check.Equals, nil)
	c.Check(paths, check.HasLen, 0)
}
