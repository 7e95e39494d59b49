// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table returns a text table of the per-chunk outcomes of b.
func (b *Batch[T]) Table() string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CHUNK", "FILE", "STATUS", "ELAPSED", "ERROR")
	for _, s := range b.Statuses {
		status, msg := "ok", ""
		switch {
		case errors.Is(s.Err, context.Canceled):
			status, msg = "canceled", s.Err.Error()
		case s.Err != nil:
			status, msg = "failed", s.Err.Error()
		}
		t.Row(
			fmt.Sprint(s.Index),
			filepath.Base(s.Path),
			status,
			s.Elapsed.Round(time.Millisecond).String(),
			msg,
		)
	}
	return t.String()
}
