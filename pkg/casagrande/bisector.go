package casagrande

import (
	"math"

	"sigmap/internal/models"
	"sigmap/pkg/interpolation"
)

// BisectorSlope halves the angle of a tangent with slope m
func BisectorSlope(m float64) float64 {
	return math.Tan(0.5 * math.Atan(m))
}

// NewBisector builds the bisector of the angle between the horizontal and the
// spline tangent at the maximum curvature point. The slope is always taken
// from the spline, also when the point came from the polynomial search.
func NewBisector(s *interpolation.Spline, mcp models.MaximumCurvaturePoint) models.Bisector {
	x1 := math.Log10(mcp.Stress)
	m := s.Derivative1(x1)
	return models.Bisector{
		X1:           x1,
		Y1:           mcp.VoidRatio,
		TangentSlope: m,
		Slope:        BisectorSlope(m),
	}
}
