package casagrande

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"sigmap/internal/models"
	"sigmap/pkg/interpolation"
)

// Curvature returns k(x) = |f''(x)| / (1 + f'(x)^2)^1.5
func Curvature(m interpolation.CurveModel, x float64) float64 {
	d1 := m.Derivative1(x)
	return math.Abs(m.Derivative2(x)) / math.Pow(1+d1*d1, 1.5)
}

// SampleCurvature evaluates the curvature at every axis value in xs
func SampleCurvature(m interpolation.CurveModel, xs []float64) []models.CurvatureSample {
	axis := m.Axis()
	samples := make([]models.CurvatureSample, len(xs))
	for i, x := range xs {
		samples[i] = models.CurvatureSample{
			Stress:    axis.Inverse(x),
			X:         x,
			Curvature: Curvature(m, x),
		}
	}
	return samples
}

func curvatureValues(samples []models.CurvatureSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Curvature
	}
	return out
}

// FindPeaks returns the indices of the local maxima of x in ascending
// order. A flat peak is reported at its middle sample (rounded down); the
// first and last samples are never peaks. When distance > 1, peaks closer
// than distance samples to a higher peak are dropped, highest first. Of two
// equally high peaks the later one wins.
func FindPeaks(x []float64, distance int) []int {
	peaks := localMaxima(x)
	if distance > 1 && len(peaks) > 1 {
		peaks = selectByDistance(x, peaks, distance)
	}
	return peaks
}

func localMaxima(x []float64) []int {
	var peaks []int
	last := len(x) - 1
	i := 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

func selectByDistance(x []float64, peaks []int, distance int) []int {
	n := len(peaks)
	heights := make([]float64, n)
	for i, p := range peaks {
		heights[i] = x[p]
	}
	order := make([]int, n)
	floats.ArgsortStable(heights, order)

	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}
	for i := n - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < n && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, n)
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}
