package interpolation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"sigmap/internal/models"
)

// PolynomialDegree is the order of the least-squares polynomial
const PolynomialDegree = 4

// MinPolynomialPoints is the smallest number of points a degree 4 fit
// accepts; with fewer the fit interpolates instead of smoothing.
const MinPolynomialPoints = PolynomialDegree + 1

// Polynomial is a fourth order least-squares fit of void ratio against the
// transformed stress over a sub-range of the curve. It does not interpolate.
type Polynomial struct {
	axis Axis

	// coeffs holds p0..p4 in ascending order: e = sum p_k x^k
	coeffs []float64

	points models.Curve
	r2     float64
}

// CeilingIndex returns the index of the first point whose stress is at least
// the given stress. A stress of zero maps to index 1 so the seating point is
// skipped. A stress above every tested stress maps to len(curve) and ok is
// false.
func CeilingIndex(curve models.Curve, stress float64) (idx int, ok bool) {
	if stress == 0 {
		return 1, len(curve) > 1
	}
	for i, p := range curve {
		if p.Stress >= stress {
			return i, true
		}
	}
	return len(curve), false
}

// NewPolynomial fits a polynomial over the points whose index lies in
// [CeilingIndex(low), CeilingIndex(high)). The point at exactly `high` is not
// part of the fit, and neither is the seating point at index 0.
func NewPolynomial(curve models.Curve, low, high float64, doubleLog bool) (*Polynomial, error) {
	if len(curve) == 0 {
		return nil, &InsufficientDataError{Model: "polynomial", Required: MinPolynomialPoints, Got: 0}
	}
	if err := curve.Validate(); err != nil {
		return nil, &InvalidDataError{Err: err}
	}

	rangeErr := func(reason string) error {
		return &InvalidRangeError{
			Low: low, High: high,
			MinStress: curve[0].Stress, MaxStress: curve.MaxStress(),
			Reason: reason,
		}
	}
	switch {
	case math.IsNaN(low) || math.IsNaN(high):
		return nil, rangeErr("bounds must be numbers")
	case low < 0:
		return nil, rangeErr("lower bound is negative")
	case low >= high:
		return nil, rangeErr("lower bound must be below upper bound")
	case low > curve.MaxStress():
		return nil, rangeErr("lower bound is above the largest tested stress")
	case high <= curve[0].Stress:
		return nil, rangeErr("upper bound is at or below the smallest tested stress")
	}

	start, _ := CeilingIndex(curve, low)
	if start < 1 {
		start = 1
	}
	end, _ := CeilingIndex(curve, high)
	if end < start {
		end = start
	}
	selected := curve[start:end]
	if len(selected) < MinPolynomialPoints {
		return nil, &InsufficientDataError{Model: "polynomial", Required: MinPolynomialPoints, Got: len(selected)}
	}

	axis := AxisFor(doubleLog)
	xs := make([]float64, len(selected))
	ys := make([]float64, len(selected))
	for i, p := range selected {
		if !axis.Admits(p.Stress) {
			return nil, &InvalidDataError{Err: fmt.Errorf("stress %g kPa cannot be mapped onto a %s axis", p.Stress, axis)}
		}
		xs[i] = axis.Forward(p.Stress)
		ys[i] = p.VoidRatio
	}

	coeffs, err := fitPolynomial(xs, ys, PolynomialDegree)
	if err != nil {
		return nil, err
	}

	poly := &Polynomial{
		axis:   axis,
		coeffs: coeffs,
		points: append(models.Curve(nil), selected...),
	}
	estimates := make([]float64, len(xs))
	for i, x := range xs {
		estimates[i] = poly.Evaluate(x)
	}
	poly.r2 = stat.RSquaredFrom(estimates, ys, nil)
	return poly, nil
}

// fitPolynomial solves the Vandermonde least-squares problem with a QR
// factorization and returns coefficients in ascending order
func fitPolynomial(xs, ys []float64, degree int) ([]float64, error) {
	n := len(xs)
	a := mat.NewDense(n, degree+1, nil)
	for i, x := range xs {
		v := 1.0
		for k := 0; k <= degree; k++ {
			a.Set(i, k, v)
			v *= x
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), ys...))

	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, &InvalidDataError{Err: fmt.Errorf("polynomial fit is rank deficient (condition number %.3g)", float64(cond))}
		}
		return nil, fmt.Errorf("solving polynomial least squares: %w", err)
	}
	return append([]float64(nil), c.RawVector().Data...), nil
}

// Evaluate returns the fitted void ratio at axis value x
func (p *Polynomial) Evaluate(x float64) float64 {
	var y float64
	for k := len(p.coeffs) - 1; k >= 0; k-- {
		y = y*x + p.coeffs[k]
	}
	return y
}

// Derivative1 returns p1 + 2 p2 x + 3 p3 x^2 + 4 p4 x^3
func (p *Polynomial) Derivative1(x float64) float64 {
	var y float64
	for k := len(p.coeffs) - 1; k >= 1; k-- {
		y = y*x + float64(k)*p.coeffs[k]
	}
	return y
}

// Derivative2 returns 2 p2 + 6 p3 x + 12 p4 x^2
func (p *Polynomial) Derivative2(x float64) float64 {
	var y float64
	for k := len(p.coeffs) - 1; k >= 2; k-- {
		y = y*x + float64(k*(k-1))*p.coeffs[k]
	}
	return y
}

// Domain returns the axis values of the first and last fitted points
func (p *Polynomial) Domain() (lo, hi float64) {
	return p.axis.Forward(p.points[0].Stress), p.axis.Forward(p.points[len(p.points)-1].Stress)
}

// Axis returns the stress transform used by the fit
func (p *Polynomial) Axis() Axis { return p.axis }

// Coefficients returns p0..p4 in ascending order
func (p *Polynomial) Coefficients() []float64 {
	return append([]float64(nil), p.coeffs...)
}

// R2 is the coefficient of determination of the fit over the fitted points
func (p *Polynomial) R2() float64 { return p.r2 }

// Points returns the curve points the polynomial was fitted to
func (p *Polynomial) Points() models.Curve {
	return append(models.Curve(nil), p.points...)
}

// StressSpan returns the first and last fitted stresses in kPa
func (p *Polynomial) StressSpan() (lo, hi float64) {
	return p.points[0].Stress, p.points[len(p.points)-1].Stress
}
