// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package render draws quality control plots of file summaries.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/biogo/fqbatch/internal/atomicfile"
	"github.com/biogo/fqbatch/summary"
	"github.com/biogo/fqbatch/trim"
)

// errNoData is returned by plot constructors given empty summaries.
var errNoData = errors.New("render: no data to plot")

// Renderer writes plots for the file stem to Dir.
type Renderer struct {
	Dir  string
	Stem string

	// Format is the image format, "png", "svg" or "pdf".
	Format string

	Width, Height vg.Length
}

func (r Renderer) save(p *plot.Plot, name string) (string, error) {
	format := r.Format
	if format == "" {
		format = "png"
	}
	w, h := r.Width, r.Height
	if w == 0 {
		w = 8 * vg.Inch
	}
	if h == 0 {
		h = 5 * vg.Inch
	}
	wt, err := p.WriterTo(w, h, format)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	path := filepath.Join(r.Dir, fmt.Sprintf("%s_%s.%s", r.Stem, name, format))
	err = atomicfile.Write(path, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return path, nil
}

type chart struct {
	name string
	make func() (*plot.Plot, error)
}

func (r Renderer) all(charts []chart) ([]string, error) {
	var paths []string
	for _, c := range charts {
		p, err := c.make()
		if err == errNoData {
			continue
		}
		if err != nil {
			return paths, err
		}
		path, err := r.save(p, c.name)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Summary writes the per-base quality, per-base content, GC and
// quality distribution plots of s, returning the written paths.
// Plots without data are skipped.
func (r Renderer) Summary(s *summary.FileSummary) ([]string, error) {
	return r.all([]chart{
		{"per_base_quality", func() (*plot.Plot, error) { return PerBaseQuality(s) }},
		{"per_base_content", func() (*plot.Plot, error) { return BaseContent(s) }},
		{"gc_distribution", func() (*plot.Plot, error) { return GCDistribution(s) }},
		{"quality_distribution", func() (*plot.Plot, error) { return QualityDistribution(s) }},
	})
}

// Comparison writes the before and after trimming plots.
func (r Renderer) Comparison(before, after *summary.FileSummary, cmp *summary.Comparison) ([]string, error) {
	return r.all([]chart{
		{"length_comparison", func() (*plot.Plot, error) { return LengthComparison(before, after) }},
		{"quality_comparison", func() (*plot.Plot, error) { return QualityComparison(before, after) }},
		{"trim_categories", func() (*plot.Plot, error) { return TrimCategories(cmp.Stats) }},
	})
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Add(plotter.NewGrid())
	return p
}

func positionMeans(s *summary.FileSummary) plotter.XYs {
	xy := make(plotter.XYs, len(s.Positions))
	for i, ps := range s.Positions {
		xy[i] = plotter.XY{X: float64(ps.Position), Y: ps.Mean}
	}
	return xy
}

// PerBaseQuality returns a plot of mean quality by read position with
// Q10, Q20 and Q30 reference lines.
func PerBaseQuality(s *summary.FileSummary) (*plot.Plot, error) {
	if len(s.Positions) == 0 {
		return nil, errNoData
	}
	p := newPlot("Per base sequence quality", "Position in read (bp)", "Mean quality (Phred)")
	l, err := plotter.NewLine(positionMeans(s))
	if err != nil {
		return nil, err
	}
	l.Color = plotutil.Color(0)
	l.Width = vg.Points(2)
	p.Add(l)
	p.Legend.Add("mean", l)

	for i, q := range []float64{10, 20, 30} {
		f := plotter.NewFunction(func(float64) float64 { return q })
		f.XMin, f.XMax = 1, float64(len(s.Positions))
		f.Samples = 2
		f.Color = plotutil.Color(i + 1)
		f.Dashes = plotutil.Dashes(1)
		p.Add(f)
		p.Legend.Add(fmt.Sprintf("Q%.0f", q), f)
	}
	p.Y.Min = 0
	p.Y.Max = max(42, float64(s.Quality.Max)+2)
	p.Legend.Top = false
	p.Legend.Left = false
	return p, nil
}

// BaseContent returns a plot of base composition by read position.
func BaseContent(s *summary.FileSummary) (*plot.Plot, error) {
	if len(s.Positions) == 0 {
		return nil, errNoData
	}
	p := newPlot("Per base sequence content", "Position in read (bp)", "Content (%)")
	for i, base := range []string{"A", "C", "G", "T", "N"} {
		xy := make(plotter.XYs, len(s.Positions))
		for j, ps := range s.Positions {
			y := [...]float64{ps.A, ps.C, ps.G, ps.T, ps.N}[i]
			xy[j] = plotter.XY{X: float64(ps.Position), Y: y}
		}
		l, err := plotter.NewLine(xy)
		if err != nil {
			return nil, err
		}
		l.Color = plotutil.Color(i)
		p.Add(l)
		p.Legend.Add(base, l)
	}
	p.Y.Min = 0
	p.Y.Max = 100
	p.Legend.Top = true
	return p, nil
}

// GCDistribution returns a histogram of per-read GC content.
func GCDistribution(s *summary.FileSummary) (*plot.Plot, error) {
	if s.Reads == 0 || len(s.GCHistogram) == 0 {
		return nil, errNoData
	}
	p := newPlot(fmt.Sprintf("GC content distribution (mean %.1f%%)", s.GC.Mean), "GC content (%)", "Reads")
	h, err := plotter.NewHistogram(counts(s.GCHistogram), len(s.GCHistogram))
	if err != nil {
		return nil, err
	}
	h.FillColor = plotutil.Color(2)
	p.Add(h)
	return p, nil
}

// QualityDistribution returns a histogram of base qualities.
func QualityDistribution(s *summary.FileSummary) (*plot.Plot, error) {
	if s.Bases == 0 || len(s.QualityHistogram) == 0 {
		return nil, errNoData
	}
	p := newPlot(fmt.Sprintf("Quality score distribution (mean Q%.1f)", s.Quality.Mean), "Quality (Phred)", "Bases")
	h, err := plotter.NewHistogram(counts(s.QualityHistogram), len(s.QualityHistogram))
	if err != nil {
		return nil, err
	}
	h.FillColor = plotutil.Color(0)
	p.Add(h)
	return p, nil
}

// counts returns the bins of a histogram indexed by value.
func counts(h []int64) plotter.XYs {
	xy := make(plotter.XYs, len(h))
	for i, n := range h {
		xy[i] = plotter.XY{X: float64(i), Y: float64(n)}
	}
	return xy
}

// lengths returns the occupied bins of a length histogram.
func lengths(h []int64) plotter.XYs {
	var xy plotter.XYs
	for l, n := range h {
		if n != 0 {
			xy = append(xy, plotter.XY{X: float64(l), Y: float64(n)})
		}
	}
	return xy
}

// LengthComparison returns overlaid read length histograms
// before and after trimming.
func LengthComparison(before, after *summary.FileSummary) (*plot.Plot, error) {
	if before.Reads == 0 || after.Reads == 0 {
		return nil, errNoData
	}
	p := newPlot("Read length before and after trimming", "Read length (bp)", "Reads")
	bins := max(1, min(50, before.Length.Max-after.Length.Min+1))
	for i, s := range []*summary.FileSummary{before, after} {
		h, err := plotter.NewHistogram(lengths(s.Lengths), bins)
		if err != nil {
			return nil, err
		}
		h.FillColor = withAlpha(plotutil.Color(i), 0x80)
		h.Color = plotutil.Color(i)
		p.Add(h)
		p.Legend.Add([]string{"before", "after"}[i], h)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// QualityComparison returns per-position mean quality before and
// after trimming.
func QualityComparison(before, after *summary.FileSummary) (*plot.Plot, error) {
	if len(before.Positions) == 0 || len(after.Positions) == 0 {
		return nil, errNoData
	}
	p := newPlot("Per base quality before and after trimming", "Position in read (bp)", "Mean quality (Phred)")
	for i, s := range []*summary.FileSummary{before, after} {
		l, err := plotter.NewLine(positionMeans(s))
		if err != nil {
			return nil, err
		}
		l.Color = plotutil.Color(i)
		l.Dashes = plotutil.Dashes(i)
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add([]string{"before", "after"}[i], l)
	}
	p.Y.Min = 0
	p.Legend.Top = false
	return p, nil
}

// TrimCategories returns a bar chart of kept reads by the
// number of bases trimmed.
func TrimCategories(st trim.Stats) (*plot.Plot, error) {
	cats := st.Categories()
	var total int64
	v := make(plotter.Values, len(cats))
	names := make([]string, len(cats))
	for i, n := range cats {
		total += n
		v[i] = float64(n)
		names[i] = trim.Category(i).String()
	}
	if total == 0 {
		return nil, errNoData
	}
	p := newPlot("Trimming categories", "", "Reads")
	b, err := plotter.NewBarChart(v, vg.Points(40))
	if err != nil {
		return nil, err
	}
	b.Color = plotutil.Color(1)
	p.Add(b)
	p.NominalX(names...)
	return p, nil
}

func withAlpha(c color.Color, a uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: a}
}
