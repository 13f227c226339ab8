// Package casagrande determines the preconsolidation pressure of a soil
// specimen from its oedometer compressibility curve with the Casagrande
// construction: locate the point of maximum curvature, bisect the angle
// between the horizontal and the tangent there, and intersect the bisector
// with the virgin compression line.
package casagrande

import (
	"fmt"
	"log/slog"
	"strconv"

	"sigmap/internal/models"
	"sigmap/pkg/interpolation"
)

// Compute runs the Casagrande construction on a cleaned compressibility curve.
// The first point of the curve is treated as the seating load: it bounds the
// plausibility check but takes no part in the spline fit.
func Compute(curve models.Curve, params *Params) (*models.Result, error) {
	if params == nil {
		return nil, &InvalidInputError{Field: "parameters", Reason: "missing"}
	}
	p := params.withDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}
	log := p.Logger.With(slog.String("mode", p.Mode.String()))

	if err := curve.Validate(); err != nil {
		return nil, &interpolation.InvalidDataError{Err: err}
	}
	spline, err := interpolation.NewSpline(curve.WithoutSeating())
	if err != nil {
		return nil, fmt.Errorf("building curve spline: %w", err)
	}
	lo, hi := spline.Domain()
	log.Debug("spline fitted", slog.Int("points", len(curve)-1),
		slog.Float64("logStressMin", lo), slog.Float64("logStressMax", hi))

	result := &models.Result{
		Mode:       p.Mode.String(),
		SigmaV:     p.SigmaV,
		VirginLine: p.VirginLine,
	}

	var mcp models.MaximumCurvaturePoint
	switch p.Mode {
	case ModeSpline:
		mcp, result.CurvatureSamples, err = LocateOnSpline(spline, p.Sampling)
		if err != nil {
			return nil, err
		}
	case ModePolynomial:
		poly, err := interpolation.NewPolynomial(curve, p.Polynomial.Low, p.Polynomial.High, p.Polynomial.DoubleLog)
		if err != nil {
			return nil, fmt.Errorf("fitting polynomial: %w", err)
		}
		mcp, result.CurvatureSamples = LocateOnPolynomial(poly, p.Sampling.PolynomialSamples)
		result.FitR2 = poly.R2()
		result.FitPoints = poly.Points()
		log.Debug("polynomial fitted", slog.String("axis", poly.Axis().String()),
			slog.Int("points", len(result.FitPoints)), slog.Float64("r2", result.FitR2))
	case ModeManual:
		mcp, err = ManualPoint(spline, p.ManualMCP)
		if err != nil {
			return nil, err
		}
	}
	result.MaximumCurvaturePoint = mcp
	log.Debug("maximum curvature point", slog.Float64("stress", mcp.Stress), slog.Float64("voidRatio", mcp.VoidRatio))

	result.Bisector = NewBisector(spline, mcp)
	log.Debug("bisector", slog.Float64("tangentSlope", result.Bisector.TangentSlope),
		slog.Float64("slope", result.Bisector.Slope))

	pressure, voidRatio, err := Intersect(result.Bisector, p.VirginLine, SpanOf(curve), p.Tolerances)
	if err != nil {
		return nil, err
	}
	result.PreconsolidationPressure = pressure
	result.VoidRatioAtPreconsolidation = voidRatio

	result.OCR, err = OCR(pressure, p.SigmaV)
	if err != nil {
		return nil, err
	}
	log.Debug("preconsolidation pressure", slog.Float64("sigmaP", pressure),
		slog.Float64("voidRatio", voidRatio), slog.Float64("ocr", result.OCR))
	return result, nil
}

func formatKPa(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64) + " kPa"
}

func formatFactor(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
