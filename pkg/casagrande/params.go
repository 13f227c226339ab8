package casagrande

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"sigmap/internal/models"
)

// Mode selects how the maximum curvature point is obtained
type Mode int

const (
	// ModeSpline searches the curvature of a cubic spline through every point
	ModeSpline Mode = iota

	// ModePolynomial searches the curvature of a fourth order polynomial
	// fitted over a stress range
	ModePolynomial

	// ModeManual takes the maximum curvature stress from the caller
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeSpline:
		return "spline"
	case ModePolynomial:
		return "polynomial"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the names returned by String plus a few aliases
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "spline", "cubic-spline":
		return ModeSpline, nil
	case "polynomial", "fop", "poly":
		return ModePolynomial, nil
	case "manual", "mcp", "override":
		return ModeManual, nil
	}
	return ModeSpline, fmt.Errorf("unknown mode %q (want spline, polynomial or manual)", s)
}

// MarshalText implements encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// PolynomialParams configures ModePolynomial
type PolynomialParams struct {
	// Low and High bound the fitted stresses in kPa; the point at High is excluded
	Low, High float64

	// DoubleLog fits against log10(log10(stress)) instead of log10(stress)
	DoubleLog bool
}

// Sampling controls the curvature search resolution
type Sampling struct {
	// SplineSamples is the number of points evenly spaced in log10(stress)
	SplineSamples int

	// PolynomialSamples is the number of points evenly spaced in stress
	PolynomialSamples int

	// PeakDistanceRatio sets the minimum distance between curvature peaks
	// as a multiple of SplineSamples. Ratios of one or more keep a single
	// peak, the highest interior maximum.
	PeakDistanceRatio float64
}

// Tolerances bounds the intersection solver
type Tolerances struct {
	// Parallel is the smallest |-Cc - bisector slope| accepted
	Parallel float64

	// PlausibilityFactor widens the tested stress span; a pressure outside
	// [min/factor, max*factor] is rejected. Zero selects the default and a
	// negative factor disables the check.
	PlausibilityFactor float64
}

// Params holds the inputs of one preconsolidation pressure computation
type Params struct {
	// Mode selects the maximum curvature search
	Mode Mode

	// Polynomial is used by ModePolynomial only
	Polynomial PolynomialParams

	// ManualMCP is the maximum curvature stress in kPa, ModeManual only
	ManualMCP float64

	// SigmaV is the in-situ effective vertical stress in kPa used for OCR
	SigmaV float64

	// VirginLine is the externally fitted virgin compression line
	VirginLine models.VirginLine

	Sampling   Sampling
	Tolerances Tolerances

	// Logger receives debug output for each stage; slog.Default() when nil
	Logger *slog.Logger
}

// Default sampling and tolerance values
const (
	DefaultSplineSamples      = 100
	DefaultPolynomialSamples  = 1000
	DefaultPeakDistanceRatio  = 5.0
	DefaultParallelTolerance  = 1e-9
	DefaultPlausibilityFactor = 10.0
)

// DefaultSampling returns the resolution used by the published method
func DefaultSampling() Sampling {
	return Sampling{
		SplineSamples:     DefaultSplineSamples,
		PolynomialSamples: DefaultPolynomialSamples,
		PeakDistanceRatio: DefaultPeakDistanceRatio,
	}
}

// DefaultTolerances returns the solver defaults
func DefaultTolerances() Tolerances {
	return Tolerances{
		Parallel:           DefaultParallelTolerance,
		PlausibilityFactor: DefaultPlausibilityFactor,
	}
}

// withDefaults fills zero sampling and tolerance fields
func (p Params) withDefaults() Params {
	if p.Sampling.SplineSamples == 0 {
		p.Sampling.SplineSamples = DefaultSplineSamples
	}
	if p.Sampling.PolynomialSamples == 0 {
		p.Sampling.PolynomialSamples = DefaultPolynomialSamples
	}
	if p.Sampling.PeakDistanceRatio == 0 {
		p.Sampling.PeakDistanceRatio = DefaultPeakDistanceRatio
	}
	if p.Tolerances.Parallel == 0 {
		p.Tolerances.Parallel = DefaultParallelTolerance
	}
	if p.Tolerances.PlausibilityFactor == 0 {
		p.Tolerances.PlausibilityFactor = DefaultPlausibilityFactor
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// PeakDistance converts the distance ratio into a sample count, at least 1
func (s Sampling) PeakDistance() int {
	d := int(math.Ceil(s.PeakDistanceRatio * float64(s.SplineSamples)))
	if d < 1 {
		d = 1
	}
	return d
}

func (p Params) validate() error {
	if !(p.SigmaV > 0) {
		return &InvalidInputError{Field: "in-situ effective stress", Value: p.SigmaV, Reason: "must be positive"}
	}
	if p.Sampling.SplineSamples < 3 {
		return &InvalidInputError{Field: "spline samples", Value: float64(p.Sampling.SplineSamples), Reason: "need at least 3"}
	}
	if p.Sampling.PolynomialSamples < 2 {
		return &InvalidInputError{Field: "polynomial samples", Value: float64(p.Sampling.PolynomialSamples), Reason: "need at least 2"}
	}
	if p.Sampling.PeakDistanceRatio < 0 {
		return &InvalidInputError{Field: "peak distance ratio", Value: p.Sampling.PeakDistanceRatio, Reason: "must not be negative"}
	}
	if p.Tolerances.PlausibilityFactor > 0 && p.Tolerances.PlausibilityFactor < 1 {
		return &InvalidInputError{Field: "plausibility factor", Value: p.Tolerances.PlausibilityFactor, Reason: "must be at least 1"}
	}
	switch p.Mode {
	case ModeSpline, ModePolynomial:
	case ModeManual:
		if !(p.ManualMCP > 0) {
			return &InvalidInputError{Field: "maximum curvature stress", Value: p.ManualMCP, Reason: "must be positive"}
		}
	default:
		return &InvalidInputError{Field: "mode", Value: float64(p.Mode), Reason: "unknown mode"}
	}
	return nil
}
