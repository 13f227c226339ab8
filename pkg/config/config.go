// Package config provides configuration loading and management for sigmap.
// It handles loading configuration from YAML files, applies overrides from
// the environment (and an optional .env file) and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"sigmap/pkg/casagrande"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "SIGMAP_"

// configValidate is the validator instance for Config, with the custom
// "mode" tag registered in init()
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("mode", validateMode)
}

// validateMode accepts every name casagrande.ParseMode understands
func validateMode(fl validator.FieldLevel) bool {
	_, err := casagrande.ParseMode(fl.Field().String())
	return err == nil
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Casagrande construction parameters
	Casagrande struct {
		// Mode selects the maximum curvature search: spline, polynomial or manual
		Mode string `yaml:"mode" validate:"mode"`

		// RangeLow and RangeHigh bound the polynomial fit in kPa
		RangeLow  float64 `yaml:"rangeLow" validate:"gte=0"`
		RangeHigh float64 `yaml:"rangeHigh" validate:"gte=0"`

		// DoubleLog fits the polynomial against log10(log10(stress))
		DoubleLog bool `yaml:"doubleLog"`

		// MCP is the maximum curvature stress in kPa for manual mode
		MCP float64 `yaml:"mcp" validate:"gte=0"`

		// SplineSamples is the curvature resolution in spline mode
		SplineSamples int `yaml:"splineSamples" validate:"gte=3"`

		// PolynomialSamples is the curvature resolution in polynomial mode
		PolynomialSamples int `yaml:"polynomialSamples" validate:"gte=2"`

		// PeakDistanceRatio is the minimum curvature peak distance as a
		// multiple of SplineSamples
		PeakDistanceRatio float64 `yaml:"peakDistanceRatio" validate:"gte=0"`

		// ParallelTolerance rejects bisectors parallel to the virgin line
		ParallelTolerance float64 `yaml:"parallelTolerance" validate:"gt=0"`

		// PlausibilityFactor bounds sigma'p around the tested range; negative disables
		PlausibilityFactor float64 `yaml:"plausibilityFactor"`
	} `yaml:"casagrande"`

	// Test data handling
	Data struct {
		// SigmaV is the in-situ effective vertical stress in kPa
		SigmaV float64 `yaml:"sigmaV" validate:"gte=0"`

		// StrainPercent is true when the strain column is in percent
		StrainPercent bool `yaml:"strainPercent"`

		// Reloading is true when the test has an unload/reload cycle
		Reloading bool `yaml:"reloading"`

		// CCRange is an optional [low, high] stress range in kPa for a linear
		// virgin compression line; empty selects the steepest spline slope
		CCRange []float64 `yaml:"ccRange,omitempty" validate:"omitempty,len=2,dive,gt=0"`

		// CROption picks the recompression index method (1, 2 or 3)
		CROption int `yaml:"crOption" validate:"oneof=1 2 3"`
	} `yaml:"data"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// Plot is the path of the construction plot; empty disables it
		Plot string `yaml:"plot"`

		// Report is the path of the PDF report; empty disables it
		Report string `yaml:"report"`

		// JSON prints the result as JSON instead of a styled table
		JSON bool `yaml:"json"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Casagrande.Mode = casagrande.ModeSpline.String()
	cfg.Casagrande.SplineSamples = casagrande.DefaultSplineSamples
	cfg.Casagrande.PolynomialSamples = casagrande.DefaultPolynomialSamples
	cfg.Casagrande.PeakDistanceRatio = casagrande.DefaultPeakDistanceRatio
	cfg.Casagrande.ParallelTolerance = casagrande.DefaultParallelTolerance
	cfg.Casagrande.PlausibilityFactor = casagrande.DefaultPlausibilityFactor

	cfg.Data.StrainPercent = true
	cfg.Data.Reloading = true
	cfg.Data.CROption = 1

	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// LoadEnvFile reads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from SIGMAP_* variables found by lookup,
// usually os.LookupEnv
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := cast.ToFloat64E(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	list := func(key string, dst *[]float64) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return
		}
		if strings.TrimSpace(v) == "" {
			*dst = nil
			return
		}
		var out []float64
		for _, part := range strings.Split(v, ",") {
			f, err := cast.ToFloat64E(strings.TrimSpace(part))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			out = append(out, f)
		}
		*dst = out
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := cast.ToBoolE(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("MODE", &c.Casagrande.Mode)
	num("RANGE_LOW", &c.Casagrande.RangeLow)
	num("RANGE_HIGH", &c.Casagrande.RangeHigh)
	flag("DOUBLE_LOG", &c.Casagrande.DoubleLog)
	num("MCP", &c.Casagrande.MCP)
	integer("SPLINE_SAMPLES", &c.Casagrande.SplineSamples)
	integer("POLYNOMIAL_SAMPLES", &c.Casagrande.PolynomialSamples)
	num("PEAK_DISTANCE_RATIO", &c.Casagrande.PeakDistanceRatio)
	num("PARALLEL_TOLERANCE", &c.Casagrande.ParallelTolerance)
	num("PLAUSIBILITY_FACTOR", &c.Casagrande.PlausibilityFactor)

	num("SIGMA_V", &c.Data.SigmaV)
	flag("STRAIN_PERCENT", &c.Data.StrainPercent)
	flag("RELOADING", &c.Data.Reloading)
	integer("CR_OPTION", &c.Data.CROption)
	list("CC_RANGE", &c.Data.CCRange)

	flag("VERBOSE", &c.Output.Verbose)
	str("PLOT", &c.Output.Plot)
	str("REPORT", &c.Output.Report)
	flag("JSON", &c.Output.JSON)

	return errors.Join(errs...)
}

// Validate checks the struct tags and the cross-field rules
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	mode, _ := casagrande.ParseMode(c.Casagrande.Mode)
	switch mode {
	case casagrande.ModePolynomial:
		if c.Casagrande.RangeLow >= c.Casagrande.RangeHigh {
			return fmt.Errorf("invalid configuration: polynomial range [%g, %g) is empty",
				c.Casagrande.RangeLow, c.Casagrande.RangeHigh)
		}
	case casagrande.ModeManual:
		if c.Casagrande.MCP <= 0 {
			return errors.New("invalid configuration: manual mode needs a positive mcp")
		}
	}
	if r := c.Data.CCRange; len(r) == 2 && r[0] >= r[1] {
		return fmt.Errorf("invalid configuration: ccRange [%g, %g] is empty", r[0], r[1])
	}
	return nil
}

// Params converts the configuration into computation parameters. The
// virgin line comes from the test data and is set by the caller.
func (c *Config) Params() (*casagrande.Params, error) {
	mode, err := casagrande.ParseMode(c.Casagrande.Mode)
	if err != nil {
		return nil, err
	}
	return &casagrande.Params{
		Mode: mode,
		Polynomial: casagrande.PolynomialParams{
			Low:       c.Casagrande.RangeLow,
			High:      c.Casagrande.RangeHigh,
			DoubleLog: c.Casagrande.DoubleLog,
		},
		ManualMCP: c.Casagrande.MCP,
		SigmaV:    c.Data.SigmaV,
		Sampling: casagrande.Sampling{
			SplineSamples:     c.Casagrande.SplineSamples,
			PolynomialSamples: c.Casagrande.PolynomialSamples,
			PeakDistanceRatio: c.Casagrande.PeakDistanceRatio,
		},
		Tolerances: casagrande.Tolerances{
			Parallel:           c.Casagrande.ParallelTolerance,
			PlausibilityFactor: c.Casagrande.PlausibilityFactor,
		},
	}, nil
}
