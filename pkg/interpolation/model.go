// Package interpolation builds smooth representations of a compressibility
// curve: an interpolating cubic spline over every cleaned point, or a fourth
// order least-squares polynomial over a stress sub-range. Both satisfy
// CurveModel so curvature and tangent computations do not care which one
// they were given.
package interpolation

import (
	"fmt"
	"math"
	"strings"
)

// CurveModel is a twice differentiable function e = f(x) where x is a
// transformed stress (see Axis)
type CurveModel interface {
	// Evaluate returns f(x)
	Evaluate(x float64) float64

	// Derivative1 returns f'(x)
	Derivative1(x float64) float64

	// Derivative2 returns f''(x)
	Derivative2(x float64) float64

	// Domain returns the interval of x over which the model was fitted
	Domain() (lo, hi float64)

	// Axis returns the stress transform the model was fitted on
	Axis() Axis
}

var (
	_ CurveModel = &Spline{}
	_ CurveModel = &Polynomial{}
)

// Axis is the transform applied to stress before fitting
type Axis int

const (
	// LogAxis uses x = log10(stress)
	LogAxis Axis = iota

	// DoubleLogAxis uses x = log10(log10(stress)); stresses must exceed 1 kPa
	DoubleLogAxis
)

// Forward maps a stress onto the axis
func (a Axis) Forward(stress float64) float64 {
	if a == DoubleLogAxis {
		return math.Log10(math.Log10(stress))
	}
	return math.Log10(stress)
}

// Inverse maps an axis value back to a stress
func (a Axis) Inverse(x float64) float64 {
	if a == DoubleLogAxis {
		return math.Pow(10, math.Pow(10, x))
	}
	return math.Pow(10, x)
}

// Admits reports whether the stress can be mapped onto the axis
func (a Axis) Admits(stress float64) bool {
	if a == DoubleLogAxis {
		return stress > 1
	}
	return stress > 0
}

func (a Axis) String() string {
	switch a {
	case LogAxis:
		return "log10"
	case DoubleLogAxis:
		return "log10(log10)"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// AxisFor returns DoubleLogAxis when doubleLog is set, LogAxis otherwise
func AxisFor(doubleLog bool) Axis {
	if doubleLog {
		return DoubleLogAxis
	}
	return LogAxis
}

// ParseAxis accepts "log", "log10", "loglog" and "double-log"
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "log", "log10":
		return LogAxis, nil
	case "loglog", "double-log", "doublelog", "log10(log10)":
		return DoubleLogAxis, nil
	}
	return LogAxis, fmt.Errorf("unknown stress axis %q", s)
}
