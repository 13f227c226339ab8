// Package oedometer turns the raw log of an incremental loading oedometer
// test into the inputs of the Casagrande construction: the cleaned
// compressibility curve, the virgin compression line and the recompression
// index.
package oedometer

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"sigmap/internal/models"
	"sigmap/pkg/interpolation"
)

// CompressionSamples is the resolution of the steepest slope search
const CompressionSamples = 500

// ErrNoUnloading is returned when a quantity needs an unloading stage that
// the test does not have
var ErrNoUnloading = errors.New("test has no unloading stage")

// ErrUndeclaredReloading is returned when loading resumes past the unloading
// stress of a log processed without a reloading stage
var ErrUndeclaredReloading = errors.New("loading resumes after the unloading stage; process the test with reloading")

// Options describes how the raw log was recorded
type Options struct {
	// StrainPercent is true when the strain column is in percent
	StrainPercent bool

	// Reloading is true when the test has an unload/reload cycle before
	// loading continues on the virgin line
	Reloading bool
}

// BreakIndices locate the stages of the test in the raw log; -1 when absent
type BreakIndices struct {
	// Unloading is the last loading step before the first unloading
	Unloading int `json:"unloading"`

	// UnloadingEnd is the last step of the first unloading
	UnloadingEnd int `json:"unloadingEnd"`

	// Reloaded is the step where reloading first reaches the Unloading stress again
	Reloaded int `json:"reloaded"`

	// LastLoading is the first step at the maximum stress
	LastLoading int `json:"lastLoading"`
}

// RecompressionLine is the fitted recompression (swelling) line
type RecompressionLine struct {
	// Index is Cr, the magnitude of the slope in e-log10(stress) space
	Index     float64
	Intercept float64
	R2        float64

	// Option is the point selection used (1, 2 or 3)
	Option int

	// Points are the raw steps used in the fit
	Points models.Curve
}

// VoidRatioAt evaluates the line at the given stress
func (r RecompressionLine) VoidRatioAt(stress float64) float64 {
	return r.Intercept - r.Index*math.Log10(stress)
}

// Data holds a processed oedometer test
type Data struct {
	Raw     []models.TestRecord
	Cleaned models.Curve
	Breaks  BreakIndices
	Options Options

	// SigmaV is the in-situ effective vertical stress in kPa
	SigmaV float64

	// InitialVoidRatio is the on-table void ratio, the first row of the log
	InitialVoidRatio float64

	// VoidRatioAtSigmaV is the cleaned curve's spline evaluated at SigmaV
	VoidRatioAtSigmaV float64

	// VirginLine is the current compression index estimate
	VirginLine models.VirginLine

	// CompressionPoints are the cleaned points used by a linear Cc fit
	CompressionPoints models.Curve

	// Recompression is the current Cr estimate; zero without an unloading stage
	Recompression RecompressionLine

	spline *interpolation.Spline
}

// New processes a raw log: strain units, break indices, cleaning, the
// default compression index (steepest spline slope) and the default
// recompression index (option 1).
func New(records []models.TestRecord, sigmaV float64, opts Options) (*Data, error) {
	if len(records) == 0 {
		return nil, errors.New("no test records")
	}
	if !(sigmaV > 0) {
		return nil, fmt.Errorf("in-situ effective stress %g must be positive", sigmaV)
	}

	d := &Data{
		Raw:              make([]models.TestRecord, len(records)),
		Options:          opts,
		SigmaV:           sigmaV,
		InitialVoidRatio: records[0].VoidRatio,
	}
	copy(d.Raw, records)
	if opts.StrainPercent {
		for i := range d.Raw {
			d.Raw[i].Strain /= 100
		}
	}

	breaks, err := findBreaks(d.Raw, opts.Reloading)
	if err != nil {
		return nil, err
	}
	d.Breaks = breaks
	d.Cleaned = clean(d.Raw, breaks)

	d.spline, err = interpolation.NewSpline(d.Cleaned.WithoutSeating())
	if err != nil {
		return nil, fmt.Errorf("error fitting cleaned curve: %w", err)
	}
	d.VoidRatioAtSigmaV = d.spline.EvaluateStress(sigmaV)

	if err := d.CompressionIndex(nil, nil); err != nil {
		return nil, err
	}
	if breaks.Unloading >= 0 {
		if err := d.RecompressionIndex(1); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// findBreaks locates the unloading and reloading stages
func findBreaks(raw []models.TestRecord, reloading bool) (BreakIndices, error) {
	b := BreakIndices{Unloading: -1, UnloadingEnd: -1, Reloaded: -1, LastLoading: -1}
	n := len(raw)

	for i := 0; i+2 < n; i++ {
		if raw[i+1].Stress > raw[i].Stress && raw[i+2].Stress < raw[i+1].Stress {
			b.Unloading = i + 1
			break
		}
	}
	if !reloading {
		if b.Unloading < 0 {
			return b, nil
		}
		for _, r := range raw[b.Unloading+1:] {
			if r.Stress > raw[b.Unloading].Stress {
				return b, fmt.Errorf("reaching %g kPa: %w", r.Stress, ErrUndeclaredReloading)
			}
		}
		b.UnloadingEnd = n - 1
		return b, nil
	}
	if b.Unloading < 0 {
		return b, ErrNoUnloading
	}

	for i := b.Unloading + 1; i+2 < n; i++ {
		if raw[i+1].Stress < raw[i].Stress && raw[i+2].Stress > raw[i+1].Stress {
			b.UnloadingEnd = i + 1
			break
		}
	}
	if b.UnloadingEnd < 0 {
		return b, errors.New("test has no reloading stage")
	}

	target := raw[b.Unloading].Stress
	for i := b.Unloading + 1; i < n; i++ {
		if raw[i].Stress == target {
			b.Reloaded = i
			break
		}
	}
	if b.Reloaded < 0 {
		return b, fmt.Errorf("reloading never returns to %g kPa", target)
	}

	maxStress := raw[0].Stress
	for _, r := range raw {
		maxStress = math.Max(maxStress, r.Stress)
	}
	for i, r := range raw {
		if r.Stress == maxStress {
			b.LastLoading = i
			break
		}
	}
	return b, nil
}

// clean keeps the loading steps: everything up to the first unloading and,
// with a reloading stage, the steps after the curve rejoins the virgin line
func clean(raw []models.TestRecord, b BreakIndices) models.Curve {
	end := len(raw)
	if b.Unloading >= 0 {
		end = b.Unloading + 1
	}
	curve := make(models.Curve, 0, len(raw))
	for _, r := range raw[:end] {
		curve = append(curve, models.CompressibilityPoint{Stress: r.Stress, VoidRatio: r.VoidRatio})
	}
	if b.Reloaded >= 0 && b.LastLoading > b.Reloaded {
		for _, r := range raw[b.Reloaded+1 : b.LastLoading+1] {
			curve = append(curve, models.CompressibilityPoint{Stress: r.Stress, VoidRatio: r.VoidRatio})
		}
	}
	return curve
}

// FindStressIdx returns the ceiling index of a stress on the cleaned curve
func (d *Data) FindStressIdx(stress float64) int {
	idx, _ := interpolation.CeilingIndex(d.Cleaned, stress)
	return idx
}

// Spline returns the spline through the cleaned curve without the seating point
func (d *Data) Spline() *interpolation.Spline { return d.spline }

// CompressionIndex updates VirginLine. With no range the index is the
// steepest slope of the cleaned curve's spline; otherwise a straight line is
// fitted to the cleaned points in [low, high) by least squares.
func (d *Data) CompressionIndex(low, high *float64) error {
	if low == nil || high == nil {
		lo, hi := d.spline.Domain()
		xs := floats.Span(make([]float64, CompressionSamples), lo, hi)
		slopes := make([]float64, len(xs))
		for i, x := range xs {
			slopes[i] = d.spline.Derivative1(x)
		}
		i := floats.MinIdx(slopes)
		d.VirginLine = models.VirginLine{
			CompressionIndex: math.Abs(slopes[i]),
			Intercept:        math.Abs(d.spline.Evaluate(xs[i]) - slopes[i]*xs[i]),
		}
		d.CompressionPoints = nil
		return nil
	}

	if *low >= *high {
		return fmt.Errorf("compression range [%g, %g) is empty", *low, *high)
	}
	start := d.FindStressIdx(*low)
	end := d.FindStressIdx(*high)
	if end-start < 2 {
		return fmt.Errorf("compression range [%g, %g) selects %d points, need 2", *low, *high, max(end-start, 0))
	}
	points := d.Cleaned[start:end]
	intercept, slope, r2 := fitLine(points)
	d.VirginLine = models.VirginLine{
		CompressionIndex: math.Abs(slope),
		Intercept:        math.Abs(intercept),
		Fitted:           true,
		R2:               r2,
	}
	d.CompressionPoints = append(models.Curve(nil), points...)
	return nil
}

// RecompressionIndex updates Recompression using the two ends of the first
// unloading (1), every unloading step (2) or the unloading and reloading
// steps (3)
func (d *Data) RecompressionIndex(opt int) error {
	b := d.Breaks
	if b.Unloading < 0 {
		return ErrNoUnloading
	}

	var points models.Curve
	add := func(r models.TestRecord) {
		points = append(points, models.CompressibilityPoint{Stress: r.Stress, VoidRatio: r.VoidRatio})
	}
	switch opt {
	case 1:
		add(d.Raw[b.Unloading])
		add(d.Raw[b.UnloadingEnd])
	case 2:
		for _, r := range d.Raw[b.Unloading : b.UnloadingEnd+1] {
			add(r)
		}
	case 3:
		if b.Reloaded < 0 {
			return errors.New("recompression option 3 needs a reloading stage")
		}
		for _, r := range d.Raw[b.Unloading : b.Reloaded+1] {
			add(r)
		}
	default:
		return fmt.Errorf("unknown recompression option %d (want 1, 2 or 3)", opt)
	}

	intercept, slope, r2 := fitLine(points)
	d.Recompression = RecompressionLine{
		Index:     math.Abs(slope),
		Intercept: intercept,
		R2:        r2,
		Option:    opt,
		Points:    points,
	}
	return nil
}

// fitLine regresses void ratio on log10(stress)
func fitLine(points models.Curve) (intercept, slope, r2 float64) {
	xs := make([]float64, len(points))
	for i, p := range points {
		xs[i] = math.Log10(p.Stress)
	}
	ys := points.VoidRatios()
	intercept, slope = stat.LinearRegression(xs, ys, nil, false)
	r2 = stat.RSquared(xs, ys, nil, intercept, slope)
	return intercept, slope, r2
}
