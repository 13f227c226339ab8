package models

import "math"

// MaximumCurvaturePoint is the point of the compressibility curve where the
// curvature peaks, or the point supplied by the user instead
type MaximumCurvaturePoint struct {
	Stress    float64 `json:"stress"`
	VoidRatio float64 `json:"voidRatio"`
}

// CurvatureSample is one evaluation of the curvature function
type CurvatureSample struct {
	// Stress is the sample position in kPa
	Stress float64 `json:"stress"`

	// X is the sample position on the model axis (log10 or log10(log10) of Stress)
	X float64 `json:"x"`

	// Curvature is |f''| / (1 + f'^2)^1.5 at X
	Curvature float64 `json:"curvature"`
}

// Bisector is the line through the maximum curvature point whose angle is
// half the angle of the tangent there. Coordinates are (log10(stress), e).
type Bisector struct {
	// X1 and Y1 locate the maximum curvature point
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`

	// TangentSlope is the curve slope at the maximum curvature point
	TangentSlope float64 `json:"tangentSlope"`

	// Slope is tan(atan(TangentSlope)/2)
	Slope float64 `json:"slope"`
}

// At returns the void ratio on the bisector at log10 stress x
func (b Bisector) At(x float64) float64 {
	return b.Slope*(x-b.X1) + b.Y1
}

// TangentAt returns the void ratio on the tangent at log10 stress x
func (b Bisector) TangentAt(x float64) float64 {
	return b.TangentSlope*(x-b.X1) + b.Y1
}

// AtStress is At evaluated on a stress in kPa
func (b Bisector) AtStress(stress float64) float64 {
	return b.At(math.Log10(stress))
}

// Result holds the outcome of one preconsolidation pressure computation and
// the intermediate geometry needed to draw the construction
type Result struct {
	// Mode is the method used to locate the maximum curvature point
	Mode string `json:"mode"`

	// PreconsolidationPressure is sigma'p in kPa
	PreconsolidationPressure float64 `json:"preconsolidationPressure"`

	// VoidRatioAtPreconsolidation is the void ratio on the bisector at sigma'p
	VoidRatioAtPreconsolidation float64 `json:"voidRatioAtPreconsolidation"`

	// OCR is sigma'p divided by the in-situ effective vertical stress
	OCR float64 `json:"ocr"`

	// SigmaV is the in-situ effective vertical stress used for OCR
	SigmaV float64 `json:"sigmaV"`

	MaximumCurvaturePoint MaximumCurvaturePoint `json:"maximumCurvaturePoint"`
	Bisector              Bisector              `json:"bisector"`
	VirginLine            VirginLine            `json:"virginLine"`

	// CurvatureSamples is empty when the maximum curvature point was given
	CurvatureSamples []CurvatureSample `json:"curvatureSamples,omitempty"`

	// FitR2 is the coefficient of determination of the polynomial fit,
	// zero in the other modes
	FitR2 float64 `json:"fitR2,omitempty"`

	// FitPoints are the curve points used by the polynomial fit
	FitPoints Curve `json:"fitPoints,omitempty"`
}
