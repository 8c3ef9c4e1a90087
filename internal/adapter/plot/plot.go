// Package plot draws the seasonal-cycle comparison figure of a dataset
// against the reference.
package plot

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/seaice-drift/internal/domain"
	"github.com/couchcryptid/seaice-drift/internal/pipeline"
)

const (
	figureWidth  = 18 * vg.Inch
	figureHeight = 6 * vg.Inch
	// axisPadding is added around the data before rounding to half units.
	axisPadding = 0.4
)

var (
	modelColor     = color.RGBA{R: 255, A: 255}
	referenceColor = color.RGBA{B: 255, A: 255}
	monthInitials  = []string{"J", "F", "M", "A", "M", "J", "J", "A", "S", "O", "N", "D"}
)

// Plotter writes drift-strength figures.
type Plotter struct {
	logger *slog.Logger
}

// NewPlotter creates a Plotter.
func NewPlotter(logger *slog.Logger) *Plotter {
	return &Plotter{logger: logger}
}

// PlotComparison draws the concentration and thickness panels side by side.
// The image format follows the file extension.
func (p *Plotter) PlotComparison(ctx context.Context, path string, model, reference *pipeline.DatasetResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if model.Report.Concentration.Comparison == nil || model.Report.Volume.Comparison == nil {
		return fmt.Errorf("plot %s: dataset has no comparison against the reference", model.Alias)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	left, err := concentrationPanel(model, reference)
	if err != nil {
		return fmt.Errorf("plot %s: %w", model.Alias, err)
	}
	right, err := volumePanel(model, reference)
	if err != nil {
		return fmt.Errorf("plot %s: %w", model.Alias, err)
	}

	c, err := draw.NewFormattedCanvas(figureWidth, figureHeight, format)
	if err != nil {
		return fmt.Errorf("plot %s: %w", model.Alias, err)
	}
	tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Inch / 2, PadTop: vg.Points(10), PadBottom: vg.Points(10), PadLeft: vg.Points(10), PadRight: vg.Points(10)}
	canvases := gplot.Align([][]*gplot.Plot{{left, right}}, tiles, draw.New(c))
	left.Draw(canvases[0][0])
	right.Draw(canvases[0][1])

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := c.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	p.logger.Debug("figure written", "dataset", model.Alias, "path", path)
	return nil
}

// series is one dataset's seasonal cycle in a panel.
type series struct {
	x, y  domain.MonthlyClimatology
	fit   domain.RegressionResult
	color color.Color
	label string
	// closed joins December back to January.
	closed bool
}

func concentrationPanel(model, reference *pipeline.DatasetResult) (*gplot.Plot, error) {
	cmp := model.Report.Concentration.Comparison
	pl := newPanel(model.Alias, "Sea ice concentration")
	pl.Legend.Left = true

	err := addSeries(pl,
		series{x: model.Concentration, y: model.Drift, fit: model.Report.Concentration.Fit, color: modelColor, label: model.Alias},
		series{x: reference.Concentration, y: reference.Drift, fit: reference.Report.Concentration.Fit, color: referenceColor,
			label: fmt.Sprintf("reference (s_A=%.1f; eps_A=%.1f%%)", cmp.SlopeRatio, cmp.Error)},
	)
	if err != nil {
		return nil, err
	}
	pl.X.Min, pl.X.Max = 0, 1
	pl.Y.Min, pl.Y.Max = limits(model.Drift, reference.Drift)
	return pl, nil
}

func volumePanel(model, reference *pipeline.DatasetResult) (*gplot.Plot, error) {
	cmp := model.Report.Volume.Comparison
	pl := newPanel(model.Alias, "Sea ice thickness (m)")

	err := addSeries(pl,
		series{x: model.Volume, y: model.Drift, fit: model.Report.Volume.Fit, color: modelColor, label: model.Alias, closed: true},
		series{x: reference.Volume, y: reference.Drift, fit: reference.Report.Volume.Fit, color: referenceColor, closed: true,
			label: fmt.Sprintf("reference volume / speed (s_h=%.1f; eps_h=%.1f%%)", cmp.SlopeRatio, cmp.Error)},
	)
	if err != nil {
		return nil, err
	}
	pl.X.Min, pl.X.Max = limits(model.Volume, reference.Volume)
	pl.Y.Min, pl.Y.Max = limits(model.Drift, reference.Drift)
	return pl, nil
}

func newPanel(alias, xLabel string) *gplot.Plot {
	pl := gplot.New()
	pl.Title.Text = "Seasonal cycle " + alias
	pl.X.Label.Text = xLabel
	pl.Y.Label.Text = "Sea ice drift speed (km/day)"
	pl.Add(plotter.NewGrid())
	return pl
}

func addSeries(pl *gplot.Plot, all ...series) error {
	for _, s := range all {
		xys := make(plotter.XYs, domain.MonthsPerYear)
		for m := range xys {
			xys[m] = plotter.XY{X: s.x.Values[m], Y: s.y.Values[m]}
		}

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return err
		}
		line.Color = s.color
		line.Width = vg.Points(2)
		points.GlyphStyle.Color = s.color
		points.GlyphStyle.Shape = draw.CircleGlyph{}
		points.GlyphStyle.Radius = vg.Points(3)
		pl.Add(line, points)

		if s.closed {
			closing, err := plotter.NewLine(plotter.XYs{xys[len(xys)-1], xys[0]})
			if err != nil {
				return err
			}
			closing.Color = s.color
			closing.Width = vg.Points(2)
			pl.Add(closing)
		}

		lo, hi := extent(s.x.Values[:])
		fit, err := plotter.NewLine(plotter.XYs{
			{X: lo, Y: s.fit.Slope*lo + s.fit.Intercept},
			{X: hi, Y: s.fit.Slope*hi + s.fit.Intercept},
		})
		if err != nil {
			return err
		}
		fit.Color = s.color
		fit.Width = vg.Points(2)
		fit.Dashes = []vg.Length{vg.Points(2), vg.Points(3)}
		pl.Add(fit)

		labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: monthInitials})
		if err != nil {
			return err
		}
		labels.Offset = vg.Point{X: vg.Points(4), Y: vg.Points(5)}
		pl.Add(labels)

		pl.Legend.Add(s.label, line, points)
	}
	return nil
}

// limits pads the joint range of two cycles and rounds outwards to 0.5.
func limits(a, b domain.MonthlyClimatology) (lo, hi float64) {
	loA, hiA := extent(a.Values[:])
	loB, hiB := extent(b.Values[:])
	lo = 0.5 * math.Floor(2*(math.Min(loA, loB)-axisPadding))
	hi = 0.5 * math.Ceil(2*(math.Max(hiA, hiB)+axisPadding))
	return lo, hi
}

func extent(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
