// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trim provides quality and adapter trimming of FASTQ chunks.
package trim

import (
	"github.com/biogo/biogo/alphabet"
)

// Policy specifies how reads are trimmed and filtered. Trimming is
// applied in field order: adapter clipping, leading and trailing
// quality trimming and then the sliding window.
type Policy struct {
	// Adapter is the 3' adapter to clip. A match of at
	// least MinOverlap bases at the read end is clipped.
	Adapter    string
	MinOverlap int

	// Leading and Trailing remove bases below
	// the given quality from the read ends.
	Leading  int
	Trailing int

	// Window and WindowQuality cut the read at the first
	// window with mean quality below WindowQuality.
	Window        int
	WindowQuality float64

	// MinLength is the minimum length of a kept read.
	MinLength int
	// MaxN is the maximum fraction of N bases in a kept
	// read. Zero disables the filter.
	MaxN float64
}

// DefaultPolicy returns the default trimming policy.
func DefaultPolicy() Policy {
	return Policy{
		MinOverlap:    5,
		Leading:       3,
		Trailing:      3,
		Window:        4,
		WindowQuality: 15,
		MinLength:     36,
		MaxN:          0.1,
	}
}

// Apply returns the half-open interval of read retained by p.
func (p Policy) Apply(read alphabet.QLetters) (lo, hi int) {
	hi = len(read)
	if p.Adapter != "" {
		hi = p.adapterStart(read)
	}
	for lo < hi && int(read[lo].Q) < p.Leading {
		lo++
	}
	for hi > lo && int(read[hi-1].Q) < p.Trailing {
		hi--
	}
	if p.Window > 0 && hi-lo >= p.Window {
		var sum int
		for _, ql := range read[lo : lo+p.Window] {
			sum += int(ql.Q)
		}
		limit := p.WindowQuality * float64(p.Window)
		for start := lo; start+p.Window <= hi; start++ {
			if start > lo {
				sum += int(read[start+p.Window-1].Q) - int(read[start-1].Q)
			}
			if float64(sum) < limit {
				hi = start
				break
			}
		}
	}
	return lo, hi
}

func (p Policy) adapterStart(read alphabet.QLetters) int {
	ad := p.Adapter
	for i := range read {
		m := min(len(ad), len(read)-i)
		if m < len(ad) && m < p.MinOverlap {
			break
		}
		match := true
		for j := 0; j < m; j++ {
			if upper(byte(read[i+j].L)) != upper(ad[j]) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return len(read)
}

func upper(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// Reason is the reason a read was dropped.
type Reason int

const (
	Kept Reason = iota
	TooShort
	TooManyN

	// LowQuality marks a read that was long enough before
	// quality trimming but not after it.
	LowQuality
)

// Trim applies p to read, returning the retained interval and whether
// the trimmed read is kept.
func (p Policy) Trim(read alphabet.QLetters) (lo, hi int, r Reason) {
	lo, hi = p.Apply(read)
	r = p.Filter(read[lo:hi])
	if r != TooShort {
		return lo, hi, r
	}
	clipped := len(read)
	if p.Adapter != "" {
		clipped = p.adapterStart(read)
	}
	if clipped > 0 && clipped >= p.MinLength {
		r = LowQuality
	}
	return lo, hi, r
}

// Filter returns whether the trimmed read is kept. Filter
// does not distinguish LowQuality from TooShort.
func (p Policy) Filter(read alphabet.QLetters) Reason {
	if len(read) == 0 || len(read) < p.MinLength {
		return TooShort
	}
	if p.MaxN > 0 {
		var n int
		for _, ql := range read {
			switch ql.L {
			case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
			default:
				n++
			}
		}
		if float64(n)/float64(len(read)) > p.MaxN {
			return TooManyN
		}
	}
	return Kept
}

// Category classifies a kept read by the number of bases removed.
type Category int

const (
	Unchanged Category = iota // No bases removed.
	Minor                     // 1-3 bases.
	Moderate                  // 4-10 bases.
	Major                     // More than 10 bases.
)

// Categorize returns the category of a read with removed bases trimmed.
func Categorize(removed int) Category {
	switch {
	case removed <= 0:
		return Unchanged
	case removed <= 3:
		return Minor
	case removed <= 10:
		return Moderate
	default:
		return Major
	}
}

func (c Category) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case Minor:
		return "minor (1-3bp)"
	case Moderate:
		return "moderate (4-10bp)"
	case Major:
		return "major (>10bp)"
	}
	return "unknown"
}
