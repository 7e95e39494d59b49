// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fastp wraps the fastp FASTQ preprocessor as a chunk quality
// metric extractor and trimmer.
//
// Only the JSON report written by fastp is used. fastp does not report
// per-base quality histograms, so the reports derived from it are marked
// approximate.
package fastp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/biogo/external"
)

// Fastp is a fastp command line. The zero values of
// fields leave the fastp defaults in place.
type Fastp struct {
	// Usage: fastp -i <in1> -o <out1> [options...]
	//
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}fastp{{end}}"` // fastp

	// Input/output options:
	In  string `buildarg:"{{if .}}--in1{{split}}{{.}}{{end}}"`  // --in1 <file>
	Out string `buildarg:"{{if .}}--out1{{split}}{{.}}{{end}}"` // --out1 <file>

	// Reporting options:
	JSON  string `buildarg:"{{if .}}--json{{split}}{{.}}{{end}}"`         // --json <file>
	HTML  string `buildarg:"{{if .}}--html{{split}}{{.}}{{end}}"`         // --html <file>
	Title string `buildarg:"{{if .}}--report_title{{split}}{{.}}{{end}}"` // --report_title <title>

	Threads int `buildarg:"{{if .}}--thread{{split}}{{.}}{{end}}"` // --thread <n>

	// Adapter trimming options:
	Adapter        string `buildarg:"{{if .}}--adapter_sequence{{split}}{{.}}{{end}}"` // --adapter_sequence <seq>
	DisableAdapter bool   `buildarg:"{{if .}}--disable_adapter_trimming{{end}}"`       // --disable_adapter_trimming

	// Per read cutting by quality options:
	CutFront            bool `buildarg:"{{if .}}--cut_front{{end}}"`                            // --cut_front
	CutFrontWindow      int  `buildarg:"{{if .}}--cut_front_window_size{{split}}{{.}}{{end}}"`  // --cut_front_window_size <n>
	CutFrontMeanQuality int  `buildarg:"{{if .}}--cut_front_mean_quality{{split}}{{.}}{{end}}"` // --cut_front_mean_quality <q>
	CutTail             bool `buildarg:"{{if .}}--cut_tail{{end}}"`                             // --cut_tail
	CutTailWindow       int  `buildarg:"{{if .}}--cut_tail_window_size{{split}}{{.}}{{end}}"`   // --cut_tail_window_size <n>
	CutTailMeanQuality  int  `buildarg:"{{if .}}--cut_tail_mean_quality{{split}}{{.}}{{end}}"`  // --cut_tail_mean_quality <q>
	CutRight            bool `buildarg:"{{if .}}--cut_right{{end}}"`                            // --cut_right
	CutRightWindow      int  `buildarg:"{{if .}}--cut_right_window_size{{split}}{{.}}{{end}}"`  // --cut_right_window_size <n>
	CutRightMeanQuality int  `buildarg:"{{if .}}--cut_right_mean_quality{{split}}{{.}}{{end}}"` // --cut_right_mean_quality <q>

	// Filtering options:
	DisableQualityFilter bool `buildarg:"{{if .}}--disable_quality_filtering{{end}}"`     // --disable_quality_filtering
	DisableLengthFilter  bool `buildarg:"{{if .}}--disable_length_filtering{{end}}"`      // --disable_length_filtering
	LengthRequired       int  `buildarg:"{{if .}}--length_required{{split}}{{.}}{{end}}"` // --length_required <n>
	NBaseLimit           int  `buildarg:"{{if .}}--n_base_limit{{split}}{{.}}{{end}}"`    // --n_base_limit <n>
}

// BuildCommand returns an exec.Cmd built from the parameters in f.
func (f Fastp) BuildCommand() (*exec.Cmd, error) {
	cl, err := f.args()
	if err != nil {
		return nil, err
	}
	return exec.Command(cl[0], cl[1:]...), nil
}

// CommandContext returns an exec.Cmd built from the parameters in f
// that is killed when ctx is done.
func (f Fastp) CommandContext(ctx context.Context) (*exec.Cmd, error) {
	cl, err := f.args()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, cl[0], cl[1:]...)
	cmd.WaitDelay = time.Second
	return cmd, nil
}

func (f Fastp) args() ([]string, error) {
	if f.In == "" {
		return nil, errors.New("fastp: missing input file")
	}
	return external.Build(f)
}

// run runs f, returning the tail of its output on failure.
func run(ctx context.Context, f Fastp, dir string) error {
	cmd, err := f.CommandContext(ctx)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out
	err = cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %s", err, tail(out.String(), 5))
	}
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
