package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sigmap/internal/models"
	"sigmap/pkg/casagrande"
	"sigmap/pkg/config"
	"sigmap/pkg/oedometer"
	"sigmap/pkg/report"
	"sigmap/pkg/visualization"
)

// app holds the flag values shared by the commands
type app struct {
	stdout, stderr io.Writer

	configPath string
	envPath    string
	verbose    bool
	jsonOut    bool

	// data flags
	sigmaV        float64
	reloading     bool
	strainPercent bool
	ccRange       []float64
	crOption      int

	// casagrande flags
	mode       string
	fitRange   []float64
	doubleLog  bool
	mcp        float64
	plotPath   string
	reportPath string

	force bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "sigmap",
		Short: "Preconsolidation pressure of soils by the Casagrande method",
		Long: `sigmap reads an oedometer test log, removes the unload/reload cycle,
estimates the compression and recompression indices and finds the
preconsolidation pressure with the Casagrande construction.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "sigmap.yaml", "configuration file")
	pf.StringVar(&a.envPath, "env", ".env", "file with SIGMAP_* overrides")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log every stage on stderr")
	pf.BoolVar(&a.jsonOut, "json", false, "print JSON instead of a table")

	casagrandeCmd := &cobra.Command{
		Use:   "casagrande <data file>",
		Short: "Compute sigma'p and OCR from a CSV or XLSX test log",
		Args:  exactArgs(1),
		RunE:  a.runCasagrande,
	}
	a.addDataFlags(casagrandeCmd)
	f := casagrandeCmd.Flags()
	f.StringVarP(&a.mode, "mode", "m", "", "maximum curvature search: spline, polynomial or manual")
	f.Float64SliceVar(&a.fitRange, "range", nil, "polynomial fit range low,high in kPa")
	f.BoolVar(&a.doubleLog, "double-log", false, "fit the polynomial against log10(log10(stress))")
	f.Float64Var(&a.mcp, "mcp", 0, "maximum curvature stress in kPa for manual mode")
	f.StringVar(&a.plotPath, "plot", "", "write the construction plot (png, svg or pdf)")
	f.StringVar(&a.reportPath, "report", "", "write a PDF report")

	indicesCmd := &cobra.Command{
		Use:   "indices <data file>",
		Short: "Print the compression and recompression indices of a test log",
		Args:  exactArgs(1),
		RunE:  a.runIndices,
	}
	a.addDataFlags(indicesCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runConfigInit,
	}
	initCmd.Flags().BoolVarP(&a.force, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(initCmd)

	root.AddCommand(casagrandeCmd, indicesCmd, configCmd)
	return root
}

func (a *app) addDataFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&a.sigmaV, "sigma-v", 0, "in-situ effective vertical stress in kPa")
	f.BoolVar(&a.reloading, "reloading", true, "the test has an unload/reload cycle (--reloading=false for a single unloading)")
	f.BoolVar(&a.strainPercent, "strain-percent", true, "the strain column is in percent")
	f.Float64SliceVar(&a.ccRange, "cc-range", nil, "stress range low,high in kPa for a linear Cc fit")
	f.IntVar(&a.crOption, "cr-option", 1, "recompression index method (1, 2 or 3)")
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were set on the command line
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnvFile(a.envPath); err != nil {
		return nil, usageError{err}
	}
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, usageError{err}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, usageError{err}
	}

	flags := cmd.Flags()
	changed := flags.Changed
	if changed("verbose") {
		cfg.Output.Verbose = a.verbose
	}
	if changed("json") {
		cfg.Output.JSON = a.jsonOut
	}
	if changed("sigma-v") {
		cfg.Data.SigmaV = a.sigmaV
	}
	if changed("reloading") {
		cfg.Data.Reloading = a.reloading
	}
	if changed("strain-percent") {
		cfg.Data.StrainPercent = a.strainPercent
	}
	if changed("cc-range") {
		cfg.Data.CCRange = a.ccRange
	}
	if changed("cr-option") {
		cfg.Data.CROption = a.crOption
	}
	if flags.Lookup("mode") != nil {
		if changed("mode") {
			cfg.Casagrande.Mode = a.mode
		}
		if changed("range") {
			if len(a.fitRange) != 2 {
				return nil, usageError{fmt.Errorf("--range needs low,high, got %d values", len(a.fitRange))}
			}
			cfg.Casagrande.RangeLow, cfg.Casagrande.RangeHigh = a.fitRange[0], a.fitRange[1]
		}
		if changed("double-log") {
			cfg.Casagrande.DoubleLog = a.doubleLog
		}
		if changed("mcp") {
			cfg.Casagrande.MCP = a.mcp
		}
		if changed("plot") {
			cfg.Output.Plot = a.plotPath
		}
		if changed("report") {
			cfg.Output.Report = a.reportPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError{err}
	}
	return cfg, nil
}

func (a *app) logger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

// loadData reads and processes the test log with the configured indices
func (a *app) loadData(cfg *config.Config, path string, log *slog.Logger) (*oedometer.Data, error) {
	if !(cfg.Data.SigmaV > 0) {
		return nil, usageError{errors.New("the in-situ effective stress is required (--sigma-v or data.sigmaV)")}
	}

	records, err := oedometer.Load(path)
	if err != nil {
		return nil, dataError{err}
	}
	d, err := oedometer.New(records, cfg.Data.SigmaV, oedometer.Options{
		StrainPercent: cfg.Data.StrainPercent,
		Reloading:     cfg.Data.Reloading,
	})
	if err != nil {
		return nil, dataError{fmt.Errorf("error processing %s: %w", path, err)}
	}

	if r := cfg.Data.CCRange; len(r) == 2 {
		low, high := r[0], r[1]
		if err := d.CompressionIndex(&low, &high); err != nil {
			return nil, dataError{fmt.Errorf("error fitting compression index: %w", err)}
		}
	}
	if d.Breaks.Unloading >= 0 && cfg.Data.CROption != d.Recompression.Option {
		if err := d.RecompressionIndex(cfg.Data.CROption); err != nil {
			return nil, dataError{fmt.Errorf("error fitting recompression index: %w", err)}
		}
	}

	log.Debug("test data processed",
		slog.String("file", path),
		slog.Int("records", len(records)),
		slog.Int("cleaned", len(d.Cleaned)),
		slog.Float64("cc", d.VirginLine.CompressionIndex),
		slog.Float64("cr", d.Recompression.Index))
	return d, nil
}

func (a *app) runCasagrande(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	log := a.logger(cfg)

	d, err := a.loadData(cfg, args[0], log)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return usageError{err}
	}
	params.VirginLine = d.VirginLine
	params.Logger = log

	result, err := casagrande.Compute(d.Cleaned, params)
	if err != nil {
		return fmt.Errorf("error computing preconsolidation pressure: %w", err)
	}

	if cfg.Output.Plot != "" || cfg.Output.Report != "" {
		viewer, err := visualization.NewViewer(d.Cleaned, result)
		if err != nil {
			return err
		}
		if cfg.Output.Plot != "" {
			if err := viewer.Save(cfg.Output.Plot); err != nil {
				return fmt.Errorf("error saving plot: %w", err)
			}
			log.Info("plot written", slog.String("path", cfg.Output.Plot))
		}
		if cfg.Output.Report != "" {
			if err := writeReport(cfg, args[0], d, viewer, result); err != nil {
				return err
			}
			log.Info("report written", slog.String("path", cfg.Output.Report))
		}
	}

	if cfg.Output.JSON {
		return writeJSON(a.stdout, result)
	}

	p := newPrinter(a.stdout)
	p.Title("Casagrande preconsolidation pressure")
	p.Row("Data file", "%s", args[0])
	p.Row("Method", "%s", result.Mode)
	p.Row("Maximum curvature point", "%.2f kPa, e = %.4f",
		result.MaximumCurvaturePoint.Stress, result.MaximumCurvaturePoint.VoidRatio)
	if result.Mode == casagrande.ModePolynomial.String() {
		p.Row("Polynomial fit R2", "%.4f", result.FitR2)
	}
	p.Row("Compression index Cc", "%.4f", result.VirginLine.CompressionIndex)
	if d.Breaks.Unloading >= 0 {
		p.Row("Recompression index Cr", "%.4f (option %d)", d.Recompression.Index, d.Recompression.Option)
	}
	p.Row("Preconsolidation pressure σ'p", "%.1f kPa", result.PreconsolidationPressure)
	p.Row("Void ratio at σ'p", "%.4f", result.VoidRatioAtPreconsolidation)
	p.Row("In-situ stress σ'v0", "%.1f kPa", result.SigmaV)
	p.Row("OCR", "%.2f", result.OCR)
	for _, path := range []string{cfg.Output.Plot, cfg.Output.Report} {
		if path != "" {
			p.Note("wrote %s", path)
		}
	}
	return nil
}

// writeReport renders the plot to PNG and embeds it in the PDF report
func writeReport(cfg *config.Config, source string, d *oedometer.Data, viewer *visualization.Viewer, result *models.Result) (err error) {
	var plot bytes.Buffer
	if _, err := viewer.WriteTo(&plot, "png"); err != nil {
		return fmt.Errorf("error rendering plot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output.Report), 0755); err != nil {
		return fmt.Errorf("error creating report directory: %w", err)
	}
	file, err := os.Create(cfg.Output.Report)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	return report.Generate(file, report.Input{
		Source:     filepath.Base(source),
		Parameters: reportParameters(cfg, d),
		Result:     result,
		Plot:       plot.Bytes(),
	})
}

func reportParameters(cfg *config.Config, d *oedometer.Data) []report.Field {
	c := cfg.Casagrande
	// the config is validated, so the mode parses
	mode, _ := casagrande.ParseMode(c.Mode)
	fields := []report.Field{{Label: "Method", Value: mode.String()}}
	switch mode {
	case casagrande.ModePolynomial:
		fields = append(fields, report.Field{Label: "Fit range", Value: fmt.Sprintf("%g to %g kPa", c.RangeLow, c.RangeHigh)})
		if c.DoubleLog {
			fields = append(fields, report.Field{Label: "Axis", Value: "log10(log10(stress))"})
		}
	case casagrande.ModeManual:
		fields = append(fields, report.Field{Label: "Maximum curvature stress", Value: fmt.Sprintf("%g kPa", c.MCP)})
	}

	cc := "steepest spline slope"
	if r := cfg.Data.CCRange; len(r) == 2 {
		cc = fmt.Sprintf("linear fit, %g to %g kPa", r[0], r[1])
	}
	fields = append(fields,
		report.Field{Label: "Compression index from", Value: cc},
		report.Field{Label: "Initial void ratio e0", Value: fmt.Sprintf("%.4f", d.InitialVoidRatio)},
		report.Field{Label: "Void ratio at sigma'v0", Value: fmt.Sprintf("%.4f", d.VoidRatioAtSigmaV)},
	)
	if d.Breaks.Unloading >= 0 {
		fields = append(fields, report.Field{
			Label: "Recompression index Cr",
			Value: fmt.Sprintf("%.4f (option %d, R2 %.3f)", d.Recompression.Index, d.Recompression.Option, d.Recompression.R2),
		})
	}
	return fields
}

// indicesView is the JSON shape of the indices command
type indicesView struct {
	InitialVoidRatio  float64                `json:"initialVoidRatio"`
	SigmaV            float64                `json:"sigmaV"`
	VoidRatioAtSigmaV float64                `json:"voidRatioAtSigmaV"`
	VirginLine        models.VirginLine      `json:"virginLine"`
	Recompression     *recompressionView     `json:"recompression,omitempty"`
	Breaks            oedometer.BreakIndices `json:"breaks"`
	Cleaned           models.Curve           `json:"cleaned"`
}

type recompressionView struct {
	Index     float64 `json:"index"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
	Option    int     `json:"option"`
}

func (a *app) runIndices(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	d, err := a.loadData(cfg, args[0], a.logger(cfg))
	if err != nil {
		return err
	}

	view := indicesView{
		InitialVoidRatio:  d.InitialVoidRatio,
		SigmaV:            d.SigmaV,
		VoidRatioAtSigmaV: d.VoidRatioAtSigmaV,
		VirginLine:        d.VirginLine,
		Breaks:            d.Breaks,
		Cleaned:           d.Cleaned,
	}
	if d.Breaks.Unloading >= 0 {
		r := d.Recompression
		view.Recompression = &recompressionView{Index: r.Index, Intercept: r.Intercept, R2: r.R2, Option: r.Option}
	}
	if cfg.Output.JSON {
		return writeJSON(a.stdout, view)
	}

	p := newPrinter(a.stdout)
	p.Title("Oedometer test indices")
	p.Row("Data file", "%s", args[0])
	p.Row("Cleaned points", "%d of %d", len(d.Cleaned), len(d.Raw))
	p.Row("Initial void ratio e0", "%.4f", d.InitialVoidRatio)
	p.Row("Void ratio at σ'v0", "%.4f (σ'v0 = %g kPa)", d.VoidRatioAtSigmaV, d.SigmaV)
	if d.VirginLine.Fitted {
		p.Row("Compression index Cc", "%.4f (R2 %.4f)", d.VirginLine.CompressionIndex, d.VirginLine.R2)
	} else {
		p.Row("Compression index Cc", "%.4f (steepest slope)", d.VirginLine.CompressionIndex)
	}
	p.Row("Virgin line intercept", "%.4f", d.VirginLine.Intercept)
	if view.Recompression != nil {
		p.Row("Recompression index Cr", "%.4f (option %d, R2 %.4f)",
			d.Recompression.Index, d.Recompression.Option, d.Recompression.R2)
	} else {
		p.Note("no unloading stage, Cr not available")
	}
	return nil
}

func (a *app) runConfigInit(cmd *cobra.Command, args []string) error {
	path := a.configPath
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !a.force {
		return usageError{fmt.Errorf("%s already exists, use --force to overwrite", path)}
	}
	if err := config.CreateDefaultConfigFile(path); err != nil {
		return err
	}
	newPrinter(a.stdout).Note("wrote default configuration to %s", path)
	return nil
}
