package visualization

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"sigmap/internal/models"
)

// Default figure size of one tile
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

var (
	dataColor      = color.RGBA{A: 255}
	mcpColor       = color.RGBA{R: 200, A: 255}
	constructColor = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	vclColor       = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	sigmaPColor    = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	sigmaVColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Viewer draws the Casagrande construction of a computed result: the
// compressibility curve, the maximum curvature point with its horizontal,
// tangent and bisector lines, the virgin compression line and the sigma'p
// and sigma'v0 markers. When the result carries curvature samples a second
// tile shows the curvature function.
type Viewer struct {
	// curve is the cleaned compressibility curve, seating point included
	curve models.Curve

	// result is the computation being drawn
	result *models.Result

	// Title is printed above the construction tile
	Title string

	// Width and Height size a single tile
	Width, Height vg.Length
}

// NewViewer creates a viewer for a result computed from curve
func NewViewer(curve models.Curve, result *models.Result) (*Viewer, error) {
	if result == nil {
		return nil, errors.New("no result to draw")
	}
	if len(curve.WithoutSeating()) < 2 {
		return nil, fmt.Errorf("curve has %d points, need at least 3", len(curve))
	}
	return &Viewer{
		curve:  curve,
		result: result,
		Title:  "Casagrande construction",
		Width:  DefaultWidth,
		Height: DefaultHeight,
	}, nil
}

// ConstructionPlot builds the e-log(stress) tile
func (v *Viewer) ConstructionPlot() (*plot.Plot, error) {
	r := v.result
	points := v.curve.WithoutSeating()
	minStress, maxStress := points[0].Stress, points.MaxStress()

	p := plot.New()
	p.Title.Text = v.Title
	p.X.Label.Text = "Effective vertical stress [kPa]"
	p.Y.Label.Text = "Void ratio, e"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	data := make(plotter.XYs, len(points))
	for i, pt := range points {
		data[i] = plotter.XY{X: pt.Stress, Y: pt.VoidRatio}
	}
	line, scatter, err := plotter.NewLinePoints(data)
	if err != nil {
		return nil, fmt.Errorf("error plotting curve: %w", err)
	}
	line.Color = dataColor
	line.Dashes = []vg.Length{vg.Points(1), vg.Points(1)}
	scatter.Shape = draw.RingGlyph{}
	scatter.Color = dataColor
	p.Add(line, scatter)
	p.Legend.Add("Experimental data", line, scatter)

	x1 := r.Bisector.X1
	xEnd := math.Log10(maxStress)
	xStart := math.Log10(minStress)
	span := xEnd - xStart

	// horizontal, tangent and bisector lines start at the MCP
	horizontal := segment(x1, x1+0.4*span, func(float64) float64 { return r.Bisector.Y1 })
	tangent := segment(x1, x1+0.25*span, r.Bisector.TangentAt)
	xp := math.Log10(r.PreconsolidationPressure)
	bisector := segment(x1, math.Max(xp, x1)+0.1*span, r.Bisector.At)
	for _, s := range []struct {
		xys   plotter.XYs
		label string
	}{
		{horizontal, "Horizontal"},
		{tangent, "Tangent"},
		{bisector, "Bisector"},
	} {
		l, err := plotter.NewLine(s.xys)
		if err != nil {
			return nil, fmt.Errorf("error plotting %s line: %w", strings.ToLower(s.label), err)
		}
		l.Color = constructColor
		if s.label == "Bisector" {
			l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(l)
		p.Legend.Add(s.label, l)
	}

	vcl := r.VirginLine
	vclLine, err := plotter.NewLine(segment(math.Min(xp, x1)-0.05*span, xEnd, func(x float64) float64 {
		return vcl.Intercept - vcl.CompressionIndex*x
	}))
	if err != nil {
		return nil, fmt.Errorf("error plotting virgin line: %w", err)
	}
	vclLine.Color = vclColor
	p.Add(vclLine)
	p.Legend.Add(fmt.Sprintf("VCL, Cc = %.3f", vcl.CompressionIndex), vclLine)

	mcp, err := marker(r.MaximumCurvaturePoint.Stress, r.MaximumCurvaturePoint.VoidRatio, mcpColor, draw.CircleGlyph{})
	if err != nil {
		return nil, err
	}
	p.Add(mcp)
	p.Legend.Add(fmt.Sprintf("MCP, %.1f kPa", r.MaximumCurvaturePoint.Stress), mcp)

	sp, err := marker(r.PreconsolidationPressure, r.VoidRatioAtPreconsolidation, sigmaPColor, draw.BoxGlyph{})
	if err != nil {
		return nil, err
	}
	p.Add(sp)
	p.Legend.Add(fmt.Sprintf("σ'p = %.1f kPa, OCR = %.2f", r.PreconsolidationPressure, r.OCR), sp)

	if r.SigmaV > 0 {
		ys := points.VoidRatios()
		lo, hi := floats.Min(ys), floats.Max(ys)
		sv, err := plotter.NewLine(plotter.XYs{{X: r.SigmaV, Y: lo}, {X: r.SigmaV, Y: hi}})
		if err != nil {
			return nil, fmt.Errorf("error plotting sigma'v0: %w", err)
		}
		sv.Color = sigmaVColor
		sv.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
		p.Add(sv)
		p.Legend.Add(fmt.Sprintf("σ'v0 = %.0f kPa", r.SigmaV), sv)
	}

	if len(r.FitPoints) > 0 {
		fit := make(plotter.XYs, len(r.FitPoints))
		for i, pt := range r.FitPoints {
			fit[i] = plotter.XY{X: pt.Stress, Y: pt.VoidRatio}
		}
		s, err := plotter.NewScatter(fit)
		if err != nil {
			return nil, fmt.Errorf("error plotting fit points: %w", err)
		}
		s.Shape = draw.CrossGlyph{}
		s.Color = mcpColor
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("Polynomial fit, R² = %.3f", r.FitR2), s)
	}

	p.Legend.Top = false
	p.Legend.Left = true
	return p, nil
}

// CurvaturePlot builds the curvature tile, or returns nil when the result
// has no curvature samples
func (v *Viewer) CurvaturePlot() (*plot.Plot, error) {
	samples := v.result.CurvatureSamples
	if len(samples) == 0 {
		return nil, nil
	}

	p := plot.New()
	p.Title.Text = "Curvature"
	p.X.Label.Text = "Effective vertical stress [kPa]"
	p.Y.Label.Text = "Curvature"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(samples))
	for i, s := range samples {
		xys[i] = plotter.XY{X: s.Stress, Y: s.Curvature}
	}
	l, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("error plotting curvature: %w", err)
	}
	l.Color = dataColor
	p.Add(l)

	mcp := v.result.MaximumCurvaturePoint
	best := samples[0]
	for _, s := range samples {
		if math.Abs(s.Stress-mcp.Stress) < math.Abs(best.Stress-mcp.Stress) {
			best = s
		}
	}
	m, err := marker(best.Stress, best.Curvature, mcpColor, draw.CircleGlyph{})
	if err != nil {
		return nil, err
	}
	p.Add(m)
	p.Legend.Add("Maximum curvature", m)
	return p, nil
}

// WriteTo renders the figure in the given format (png, svg, pdf, jpg, eps)
func (v *Viewer) WriteTo(w io.Writer, format string) (int64, error) {
	construction, err := v.ConstructionPlot()
	if err != nil {
		return 0, err
	}
	curvature, err := v.CurvaturePlot()
	if err != nil {
		return 0, err
	}

	rows := 1
	if curvature != nil {
		rows = 2
	}
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	c, err := draw.NewFormattedCanvas(v.Width, v.Height*vg.Length(rows), format)
	if err != nil {
		return 0, err
	}
	dc := draw.New(c)

	if curvature == nil {
		construction.Draw(dc)
	} else {
		tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Millimeter * 4}
		canvases := plot.Align([][]*plot.Plot{{construction}, {curvature}}, tiles, dc)
		construction.Draw(canvases[0][0])
		curvature.Draw(canvases[1][0])
	}

	return c.WriteTo(w)
}

// Save writes the figure to a file whose extension selects the format
func (v *Viewer) Save(path string) (err error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return fmt.Errorf("no image format in %q", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating plot directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = v.WriteTo(file, format)
	return err
}

// segment samples f on the log axis between x0 and x1 and returns stress
// coordinates
func segment(x0, x1 float64, f func(float64) float64) plotter.XYs {
	const n = 20
	xys := make(plotter.XYs, n)
	for i := range xys {
		x := x0 + (x1-x0)*float64(i)/float64(n-1)
		xys[i] = plotter.XY{X: math.Pow(10, x), Y: f(x)}
	}
	return xys
}

func marker(x, y float64, c color.Color, shape draw.GlyphDrawer) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(plotter.XYs{{X: x, Y: y}})
	if err != nil {
		return nil, fmt.Errorf("error plotting marker: %w", err)
	}
	s.Color = c
	s.Shape = shape
	s.Radius = vg.Points(4)
	return s, nil
}
