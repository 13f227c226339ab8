package casagrande

import "fmt"

// NoCurvatureMaximumError is returned when the peak search over the sampled
// curvature finds no local maximum
type NoCurvatureMaximumError struct {
	Samples  int
	Distance int
}

func (e *NoCurvatureMaximumError) Error() string {
	return fmt.Sprintf("no curvature maximum among %d samples (minimum peak distance %d)", e.Samples, e.Distance)
}

// DegenerateGeometryError is returned when the bisector and the virgin
// compression line are (nearly) parallel, or the virgin line is flat
type DegenerateGeometryError struct {
	BisectorSlope    float64
	CompressionIndex float64
	Tolerance        float64
	Reason           string
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate geometry (bisector slope %g, compression index %g): %s",
		e.BisectorSlope, e.CompressionIndex, e.Reason)
}

// NonPhysicalResultError is returned when the solved pressure cannot be a
// preconsolidation pressure of the tested specimen. It usually points at the
// virgin line or the fit range rather than at the solver.
type NonPhysicalResultError struct {
	Pressure  float64
	MinStress float64
	MaxStress float64
	Reason    string
}

func (e *NonPhysicalResultError) Error() string {
	return fmt.Sprintf("non-physical preconsolidation pressure %g kPa (tested %g to %g kPa): %s",
		e.Pressure, e.MinStress, e.MaxStress, e.Reason)
}

// InvalidInputError reports a parameter outside its domain
type InvalidInputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %g: %s", e.Field, e.Value, e.Reason)
}
