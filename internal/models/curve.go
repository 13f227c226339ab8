package models

import (
	"fmt"
	"math"
)

// CompressibilityPoint is a single loading step of an oedometer test
type CompressibilityPoint struct {
	// Stress is the vertical effective stress in kPa
	Stress float64 `json:"stress" yaml:"stress"`

	// VoidRatio is the void ratio reached under Stress
	VoidRatio float64 `json:"voidRatio" yaml:"voidRatio"`
}

// Curve is a cleaned compressibility curve: unload/reload cycles removed and
// stresses strictly increasing. The first point is the seating load.
type Curve []CompressibilityPoint

// Stresses returns the stress column of the curve
func (c Curve) Stresses() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Stress
	}
	return out
}

// VoidRatios returns the void ratio column of the curve
func (c Curve) VoidRatios() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.VoidRatio
	}
	return out
}

// WithoutSeating returns the curve without its first point. The seating load
// is not a sample of the virgin curve and is excluded from model fitting.
func (c Curve) WithoutSeating() Curve {
	if len(c) == 0 {
		return c
	}
	return c[1:]
}

// MaxStress returns the largest tested stress, or 0 for an empty curve
func (c Curve) MaxStress() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1].Stress
}

// Validate checks that every stress is finite and positive and that stresses
// increase strictly. The seating point may sit at zero stress.
func (c Curve) Validate() error {
	for i, p := range c {
		if math.IsNaN(p.Stress) || math.IsInf(p.Stress, 0) || p.Stress < 0 || (p.Stress == 0 && i > 0) {
			return fmt.Errorf("point %d: stress %g is not a positive finite value", i, p.Stress)
		}
		if math.IsNaN(p.VoidRatio) || math.IsInf(p.VoidRatio, 0) {
			return fmt.Errorf("point %d: void ratio %g is not finite", i, p.VoidRatio)
		}
		if i > 0 && p.Stress <= c[i-1].Stress {
			return fmt.Errorf("point %d: stress %g does not increase (previous %g)", i, p.Stress, c[i-1].Stress)
		}
	}
	return nil
}

// VirginLine is the virgin compression line e = Intercept - CompressionIndex*log10(stress)
type VirginLine struct {
	// CompressionIndex (Cc) is the magnitude of the slope in e-log10(stress) space
	CompressionIndex float64 `json:"compressionIndex" yaml:"compressionIndex"`

	// Intercept is the void ratio at a stress of 1 kPa
	Intercept float64 `json:"intercept" yaml:"intercept"`

	// Fitted is true when the line comes from a linear regression over a
	// stress range rather than the steepest spline slope
	Fitted bool `json:"fitted" yaml:"fitted"`

	// R2 is the coefficient of determination of the regression, if Fitted
	R2 float64 `json:"r2,omitempty" yaml:"r2,omitempty"`
}

// VoidRatioAt evaluates the line at the given stress
func (v VirginLine) VoidRatioAt(stress float64) float64 {
	return v.Intercept - v.CompressionIndex*math.Log10(stress)
}

// TestRecord is a raw oedometer reading before cleaning
type TestRecord struct {
	Stress    float64
	Strain    float64
	VoidRatio float64
}
