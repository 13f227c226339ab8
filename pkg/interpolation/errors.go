package interpolation

import "fmt"

// InsufficientDataError is returned when too few points are available for
// the requested model
type InsufficientDataError struct {
	Model    string
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s model needs at least %d points, got %d", e.Model, e.Required, e.Got)
}

// InvalidRangeError is returned for a malformed polynomial fit range or one
// that lies outside the tested stresses
type InvalidRangeError struct {
	Low, High            float64
	MinStress, MaxStress float64
	Reason               string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid fit range [%g, %g] for data spanning [%g, %g] kPa: %s",
		e.Low, e.High, e.MinStress, e.MaxStress, e.Reason)
}

// InvalidDataError is returned when the curve cannot be mapped onto the
// model axis (non-positive or non-increasing stresses, NaNs)
type InvalidDataError struct {
	Err error
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid compressibility data: %v", e.Err)
}

func (e *InvalidDataError) Unwrap() error { return e.Err }
