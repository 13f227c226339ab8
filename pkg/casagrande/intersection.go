package casagrande

import (
	"math"

	"sigmap/internal/models"
)

// StressSpan is the tested stress range in kPa
type StressSpan struct {
	Min, Max float64
}

// SpanOf returns the stress span of a curve, seating load included unless
// it was applied at zero stress
func SpanOf(curve models.Curve) StressSpan {
	if len(curve) == 0 {
		return StressSpan{}
	}
	lo := curve[0].Stress
	if lo == 0 && len(curve) > 1 {
		lo = curve[1].Stress
	}
	return StressSpan{Min: lo, Max: curve.MaxStress()}
}

// Intersect solves bisector = virgin line in (log10(stress), e) and returns
// the preconsolidation pressure with the void ratio on the bisector there.
func Intersect(b models.Bisector, vcl models.VirginLine, span StressSpan, tol Tolerances) (pressure, voidRatio float64, err error) {
	cc := vcl.CompressionIndex
	if !(cc > 0) {
		return 0, 0, &DegenerateGeometryError{
			BisectorSlope:    b.Slope,
			CompressionIndex: cc,
			Tolerance:        tol.Parallel,
			Reason:           "compression index must be positive",
		}
	}

	denom := -cc - b.Slope
	if math.Abs(denom) < tol.Parallel {
		return 0, 0, &DegenerateGeometryError{
			BisectorSlope:    b.Slope,
			CompressionIndex: cc,
			Tolerance:        tol.Parallel,
			Reason:           "bisector parallel to the virgin compression line",
		}
	}

	x := (b.Y1 - b.Slope*b.X1 - vcl.Intercept) / denom
	pressure = math.Pow(10, x)
	voidRatio = b.At(x)

	if math.IsNaN(pressure) || math.IsInf(pressure, 0) || pressure <= 0 {
		return pressure, voidRatio, &NonPhysicalResultError{
			Pressure: pressure, MinStress: span.Min, MaxStress: span.Max,
			Reason: "not a positive finite stress",
		}
	}
	if f := tol.PlausibilityFactor; f > 0 && span.Max > 0 {
		if pressure < span.Min/f || pressure > span.Max*f {
			return pressure, voidRatio, &NonPhysicalResultError{
				Pressure: pressure, MinStress: span.Min, MaxStress: span.Max,
				Reason: "outside the tested range by more than a factor of " + formatFactor(f),
			}
		}
	}
	return pressure, voidRatio, nil
}

// OCR returns the overconsolidation ratio pressure/sigmaV
func OCR(pressure, sigmaV float64) (float64, error) {
	if !(sigmaV > 0) || math.IsInf(sigmaV, 0) {
		return 0, &InvalidInputError{Field: "in-situ effective stress", Value: sigmaV, Reason: "must be positive"}
	}
	return pressure / sigmaV, nil
}
