package interpolation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"sigmap/internal/models"
)

// MinSplinePoints is the smallest number of points a not-a-knot spline is
// built from. With four points the spline degenerates to a single cubic.
const MinSplinePoints = 4

// Spline is a C2 cubic spline through (log10(stress), e) with not-a-knot end
// conditions. It interpolates every input point exactly.
type Spline struct {
	xs    []float64
	ys    []float64
	cubic interp.NotAKnotCubic
}

// NewSpline fits a spline through every point of the curve. Callers that
// follow the usual convention pass curve.WithoutSeating().
func NewSpline(points models.Curve) (*Spline, error) {
	if len(points) < MinSplinePoints {
		return nil, &InsufficientDataError{Model: "spline", Required: MinSplinePoints, Got: len(points)}
	}
	if err := points.Validate(); err != nil {
		return nil, &InvalidDataError{Err: err}
	}
	if points[0].Stress <= 0 {
		return nil, &InvalidDataError{Err: fmt.Errorf("point 0: stress %g has no logarithm", points[0].Stress)}
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = LogAxis.Forward(p.Stress)
		ys[i] = p.VoidRatio
		// log10 may collapse stresses that differ in the last ulp
		if i > 0 && xs[i] <= xs[i-1] {
			return nil, &InvalidDataError{Err: fmt.Errorf("stresses %g and %g are not distinguishable on a log axis",
				points[i-1].Stress, p.Stress)}
		}
	}

	s := &Spline{xs: xs, ys: ys}
	if err := s.cubic.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fitting not-a-knot spline: %w", err)
	}
	return s, nil
}

// Evaluate returns the void ratio at x = log10(stress). Outside the domain
// the spline is clamped to its end values.
func (s *Spline) Evaluate(x float64) float64 {
	return s.cubic.Predict(x)
}

// Derivative1 returns de/dlog10(stress) at x
func (s *Spline) Derivative1(x float64) float64 {
	return s.cubic.PredictDerivative(x)
}

// Derivative2 returns the second derivative at x. The first derivative is a
// quadratic on each segment, so three samples of it inside the segment
// determine the second derivative exactly. Outside the domain the value at
// the nearest end is returned.
func (s *Spline) Derivative2(x float64) float64 {
	n := len(s.xs)
	x = math.Max(s.xs[0], math.Min(x, s.xs[n-1]))
	i := s.segment(x)
	lo, hi := s.xs[i], s.xs[i+1]
	h := (hi - lo) / 3

	d0 := s.cubic.PredictDerivative(lo)
	d1 := s.cubic.PredictDerivative(lo + h)
	d2 := s.cubic.PredictDerivative(lo + 2*h)

	u := x - (lo + h)
	return (d2-d0)/(2*h) + (d2-2*d1+d0)/(h*h)*u
}

// Domain returns [log10(first stress), log10(last stress)]
func (s *Spline) Domain() (lo, hi float64) {
	return s.xs[0], s.xs[len(s.xs)-1]
}

// Axis always returns LogAxis
func (s *Spline) Axis() Axis { return LogAxis }

// Knots returns copies of the fitted x and y values
func (s *Spline) Knots() (xs, ys []float64) {
	return append([]float64(nil), s.xs...), append([]float64(nil), s.ys...)
}

// EvaluateStress returns the void ratio at a stress in kPa
func (s *Spline) EvaluateStress(stress float64) float64 {
	return s.Evaluate(LogAxis.Forward(stress))
}

// Contains reports whether the stress lies inside the fitted span
func (s *Spline) Contains(stress float64) bool {
	if stress <= 0 {
		return false
	}
	x := LogAxis.Forward(stress)
	lo, hi := s.Domain()
	return x >= lo && x <= hi
}

// segment returns i such that xs[i] <= x < xs[i+1], with the last knot
// belonging to the last segment
func (s *Spline) segment(x float64) int {
	n := len(s.xs)
	i := sort.SearchFloat64s(s.xs, x)
	if i == n || s.xs[i] != x {
		i--
	}
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	return i
}
