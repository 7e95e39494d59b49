// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fqtest provides deterministic FASTQ data for tests.
package fqtest

import (
	"fmt"
	"os"
	"strings"
)

// Record returns the i-th synthetic record. Sequence length cycles
// through 48, 49 and 50 bases and qualities span Q2 to Q40.
func Record(i int) string {
	n := 48 + i%3
	seq := make([]byte, n)
	qual := make([]byte, n)
	for j := range seq {
		seq[j] = "ACGT"[(i*7+j*3+j/5)%4]
		qual[j] = byte('#' + (i+j*5)%39)
	}
	return fmt.Sprintf("@read%d sample=%d\n%s\n+\n%s\n", i, i%7, seq, qual)
}

// Reads returns n synthetic records.
func Reads(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(Record(i))
	}
	return sb.String()
}

// WriteFile writes data to path, panicking on error.
func WriteFile(path, data string) {
	err := os.WriteFile(path, []byte(data), 0o644)
	if err != nil {
		panic(err)
	}
}
