package casagrande

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"sigmap/internal/models"
	"sigmap/pkg/interpolation"
)

// LocateOnSpline samples the spline curvature evenly in log10(stress) and
// returns the first peak that survives the distance filter
func LocateOnSpline(s *interpolation.Spline, sampling Sampling) (models.MaximumCurvaturePoint, []models.CurvatureSample, error) {
	lo, hi := s.Domain()
	xs := floats.Span(make([]float64, sampling.SplineSamples), lo, hi)
	samples := SampleCurvature(s, xs)

	distance := sampling.PeakDistance()
	peaks := FindPeaks(curvatureValues(samples), distance)
	if len(peaks) == 0 {
		return models.MaximumCurvaturePoint{}, samples, &NoCurvatureMaximumError{Samples: len(samples), Distance: distance}
	}

	idx := peaks[0]
	return models.MaximumCurvaturePoint{
		Stress:    samples[idx].Stress,
		VoidRatio: s.Evaluate(xs[idx]),
	}, samples, nil
}

// LocateOnPolynomial samples the polynomial curvature evenly in stress
// between the first and last fitted points and returns the global maximum.
// The void ratio comes from the polynomial itself.
func LocateOnPolynomial(p *interpolation.Polynomial, n int) (models.MaximumCurvaturePoint, []models.CurvatureSample) {
	axis := p.Axis()
	lo, hi := p.StressSpan()
	stresses := floats.Span(make([]float64, n), lo, hi)

	xs := make([]float64, n)
	for i, s := range stresses {
		xs[i] = axis.Forward(s)
	}
	samples := SampleCurvature(p, xs)
	for i := range samples {
		samples[i].Stress = stresses[i]
	}

	idx := floats.MaxIdx(curvatureValues(samples))
	return models.MaximumCurvaturePoint{
		Stress:    stresses[idx],
		VoidRatio: p.Evaluate(xs[idx]),
	}, samples
}

// ManualPoint evaluates the spline at a user supplied maximum curvature stress
func ManualPoint(s *interpolation.Spline, stress float64) (models.MaximumCurvaturePoint, error) {
	if !(stress > 0) || math.IsInf(stress, 0) {
		return models.MaximumCurvaturePoint{}, &InvalidInputError{Field: "maximum curvature stress", Value: stress, Reason: "must be positive"}
	}
	if !s.Contains(stress) {
		lo, hi := s.Domain()
		return models.MaximumCurvaturePoint{}, &InvalidInputError{
			Field:  "maximum curvature stress",
			Value:  stress,
			Reason: "outside the fitted curve (" + formatKPa(math.Pow(10, lo)) + " to " + formatKPa(math.Pow(10, hi)) + ")",
		}
	}
	return models.MaximumCurvaturePoint{
		Stress:    stress,
		VoidRatio: s.EvaluateStress(stress),
	}, nil
}
