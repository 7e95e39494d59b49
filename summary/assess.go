// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package summary

import "fmt"

// Check statuses.
const (
	Pass = "pass"
	Warn = "warn"
	Info = "info"
)

// Check is the outcome of one quality assessment.
type Check struct {
	Name    string `yaml:"name"`
	Status  string `yaml:"status"`
	Message string `yaml:"message"`
}

// Assessment thresholds.
const (
	GoodQuality      = 20
	ExcellentQuality = 30
	MinGC            = 20
	MaxGC            = 80
	MaxDuplication   = 20
)

// Assess returns the quality assessment checks of s.
func Assess(s *FileSummary) []Check {
	var checks []Check

	q := s.Quality.Mean
	switch {
	case q >= ExcellentQuality:
		checks = append(checks, Check{"quality", Pass, fmt.Sprintf("excellent: high quality reads (Q%.1f >= Q%d)", q, ExcellentQuality)})
	case q >= GoodQuality:
		checks = append(checks, Check{"quality", Pass, fmt.Sprintf("good: good quality reads (Q%.1f >= Q%d)", q, GoodQuality)})
	default:
		checks = append(checks, Check{"quality", Warn, fmt.Sprintf("low quality reads (Q%.1f < Q%d)", q, GoodQuality)})
	}

	gc := s.GC.Mean
	if MinGC <= gc && gc <= MaxGC {
		checks = append(checks, Check{"gc", Pass, fmt.Sprintf("normal GC content %.1f%% (%d-%d%%)", gc, MinGC, MaxGC)})
	} else {
		checks = append(checks, Check{"gc", Warn, fmt.Sprintf("unusual GC content %.1f%%", gc)})
	}

	if s.Length.Uniform() {
		checks = append(checks, Check{"length", Pass, fmt.Sprintf("uniform read length %dbp", s.Length.Max)})
	} else {
		checks = append(checks, Check{"length", Info, fmt.Sprintf("variable read lengths %d-%dbp", s.Length.Min, s.Length.Max)})
	}

	if s.Duplication > MaxDuplication {
		checks = append(checks, Check{"duplication", Warn, fmt.Sprintf("high duplication rate %.1f%%", s.Duplication)})
	} else {
		checks = append(checks, Check{"duplication", Pass, fmt.Sprintf("duplication rate %.1f%%", s.Duplication)})
	}

	if s.Partial {
		checks = append(checks, Check{"completeness", Warn, fmt.Sprintf("%d of %d chunks missing", len(s.Missing), len(s.Missing)+len(s.Chunks))})
	}
	return checks
}

// Passed returns whether no check of s is a warning.
func (s *FileSummary) Passed() bool {
	for _, c := range s.Checks {
		if c.Status == Warn {
			return false
		}
	}
	return true
}
