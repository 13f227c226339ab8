package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigmap/internal/models"
	"sigmap/pkg/casagrande"
	"sigmap/pkg/config"
	"sigmap/pkg/interpolation"
	"sigmap/pkg/oedometer"
	"sigmap/pkg/report"
)

// writeTestLog writes a CSV log with one unload/reload cycle at 200 kPa.
// The virgin branch follows e = 2.0 - 0.4*log10(stress).
func writeTestLog(t *testing.T) string {
	t.Helper()
	load := func(s float64) float64 { return 1.10 - 0.05*math.Log10(s/12.5) }
	unload := func(s float64) float64 { return load(200) + 0.05*math.Log10(200/s) }
	virgin := func(s float64) float64 { return 2.0 - 0.4*math.Log10(s) }

	rows := [][2]float64{
		{0, 1.2},
		{12.5, load(12.5)}, {25, load(25)}, {50, load(50)}, {100, load(100)}, {200, load(200)},
		{100, unload(100)}, {50, unload(50)}, {25, unload(25)},
		{50, unload(50) - 0.004}, {100, unload(100) - 0.004}, {200, unload(200) - 0.004},
		{400, virgin(400)}, {800, virgin(800)}, {1600, virgin(1600)}, {3200, virgin(3200)},
	}
	var b strings.Builder
	b.WriteString("stress,strain,e\n")
	for _, r := range rows {
		strain := 100 * (1.2 - r[1]) / 2.2
		fmt.Fprintf(&b, "%s,%s,%s\n",
			strconv.FormatFloat(r[0], 'g', -1, 64),
			strconv.FormatFloat(strain, 'g', -1, 64),
			strconv.FormatFloat(r[1], 'g', -1, 64))
	}

	path := filepath.Join(t.TempDir(), "test.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

// runCLI runs the command line with an isolated config and env file
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	dir := t.TempDir()
	args = append(args,
		"--config", filepath.Join(dir, "sigmap.yaml"),
		"--env", filepath.Join(dir, ".env"))
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// TestCasagrandeJSON computes sigma'p on the test log
func TestCasagrandeJSON(t *testing.T) {
	code, out, errOut := runCLI(t, "casagrande", writeTestLog(t),
		"--sigma-v", "100", "--reloading", "--cc-range", "400,5000", "--json")
	require.Equal(t, exitOK, code, errOut)

	var result models.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "spline", result.Mode)
	assert.Greater(t, result.PreconsolidationPressure, 150.0)
	assert.Less(t, result.PreconsolidationPressure, 1000.0)
	assert.InDelta(t, result.PreconsolidationPressure/100, result.OCR, 1e-9)
	assert.InDelta(t, 0.4, result.VirginLine.CompressionIndex, 1e-9)
	assert.True(t, result.VirginLine.Fitted)
	assert.NotEmpty(t, result.CurvatureSamples)
}

// TestCasagrandeTable prints the plain table when stdout is not a terminal
func TestCasagrandeTable(t *testing.T) {
	code, out, errOut := runCLI(t, "casagrande", writeTestLog(t),
		"--sigma-v", "100", "--reloading", "--cc-range", "400,5000", "--cr-option", "2")
	require.Equal(t, exitOK, code, errOut)

	assert.Contains(t, out, "Casagrande preconsolidation pressure")
	assert.Contains(t, out, "Preconsolidation pressure σ'p")
	assert.Contains(t, out, "(option 2)")
	assert.Contains(t, out, "OCR")
	assert.NotContains(t, out, "\x1b[")
}

// TestCasagrandeManualMode uses a supplied maximum curvature point
func TestCasagrandeManualMode(t *testing.T) {
	code, out, errOut := runCLI(t, "casagrande", writeTestLog(t),
		"--sigma-v", "100", "--reloading", "--cc-range", "400,5000",
		"--mode", "manual", "--mcp", "200", "--json")
	require.Equal(t, exitOK, code, errOut)

	var result models.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "manual", result.Mode)
	assert.Equal(t, 200.0, result.MaximumCurvaturePoint.Stress)
	assert.Empty(t, result.CurvatureSamples)
}

// TestCasagrandeWritesPlotAndReport checks both output files
func TestCasagrandeWritesPlotAndReport(t *testing.T) {
	dir := t.TempDir()
	plotPath := filepath.Join(dir, "out", "construction.png")
	reportPath := filepath.Join(dir, "out", "report.pdf")

	code, out, errOut := runCLI(t, "casagrande", writeTestLog(t),
		"--sigma-v", "100", "--reloading", "--cc-range", "400,5000",
		"--plot", plotPath, "--report", reportPath)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "wrote "+plotPath)

	plot, err := os.ReadFile(plotPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(plot, []byte("\x89PNG")))

	pdf, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

// TestIndicesJSON reports Cc, Cr and the break indices
func TestIndicesJSON(t *testing.T) {
	code, out, errOut := runCLI(t, "indices", writeTestLog(t),
		"--sigma-v", "100", "--reloading", "--cc-range", "400,5000", "--json")
	require.Equal(t, exitOK, code, errOut)

	var view indicesView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 1.2, view.InitialVoidRatio)
	assert.InDelta(t, 0.4, view.VirginLine.CompressionIndex, 1e-9)
	assert.InDelta(t, 2.0, view.VirginLine.Intercept, 1e-9)
	require.NotNil(t, view.Recompression)
	assert.InDelta(t, 0.05, view.Recompression.Index, 1e-9)
	assert.Equal(t, 1, view.Recompression.Option)
	assert.Equal(t, 15, view.Breaks.LastLoading)
	assert.Len(t, view.Cleaned, 10)
}

// TestIndicesTable prints the steepest slope estimate by default
func TestIndicesTable(t *testing.T) {
	code, out, errOut := runCLI(t, "indices", writeTestLog(t), "--sigma-v", "100", "--reloading")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "(steepest slope)")
	assert.Contains(t, out, "Recompression index Cr")
}

// TestReloadingIsTheDefault processes the unload/reload cycle without the flag
func TestReloadingIsTheDefault(t *testing.T) {
	log := writeTestLog(t)
	code, out, errOut := runCLI(t, "casagrande", log, "--sigma-v", "100", "--cc-range", "400,5000", "--json")
	require.Equal(t, exitOK, code, errOut)

	var result models.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.InDelta(t, 0.4, result.VirginLine.CompressionIndex, 1e-9)
	assert.Greater(t, result.PreconsolidationPressure, 150.0)

	code, _, errOut = runCLI(t, "casagrande", log, "--sigma-v", "100", "--cc-range", "400,5000", "--reloading=false")
	assert.Equal(t, exitData, code)
	assert.Contains(t, errOut, "reloading")
}

// TestReportParametersAcceptsModeAliases lists the mode fields for alias names
func TestReportParametersAcceptsModeAliases(t *testing.T) {
	d := &oedometer.Data{Breaks: oedometer.BreakIndices{Unloading: -1}}
	labels := func(fields []report.Field) map[string]string {
		m := make(map[string]string, len(fields))
		for _, f := range fields {
			m[f.Label] = f.Value
		}
		return m
	}

	cfg := config.DefaultConfig()
	cfg.Casagrande.Mode = "fop"
	cfg.Casagrande.RangeLow, cfg.Casagrande.RangeHigh = 20, 5000
	fields := labels(reportParameters(cfg, d))
	assert.Equal(t, "polynomial", fields["Method"])
	assert.Equal(t, "20 to 5000 kPa", fields["Fit range"])

	cfg = config.DefaultConfig()
	cfg.Casagrande.Mode = "mcp"
	cfg.Casagrande.MCP = 310
	fields = labels(reportParameters(cfg, d))
	assert.Equal(t, "manual", fields["Method"])
	assert.Equal(t, "310 kPa", fields["Maximum curvature stress"])
}

// TestConfigFileAndEnv reads parameters from a config file and an env file
func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sigmap.yaml")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data:\n  sigmaV: 50\n  reloading: true\n  ccRange: [400, 5000]\n"), 0644))
	require.NoError(t, os.WriteFile(envPath, []byte("SIGMAP_JSON=true\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("SIGMAP_JSON") })

	var stdout, stderr bytes.Buffer
	code := run([]string{"casagrande", writeTestLog(t), "--config", cfgPath, "--env", envPath}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var result models.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, 50.0, result.SigmaV)
	assert.InDelta(t, result.PreconsolidationPressure/50, result.OCR, 1e-9)
}

// TestConfigInit writes defaults once unless forced
func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "sigmap.yaml")
	var stdout, stderr bytes.Buffer

	require.Equal(t, exitOK, run([]string{"config", "init", path}, &stdout, &stderr), stderr.String())
	_, err := os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, exitUsage, run([]string{"config", "init", path}, &stdout, &stderr))
	assert.Equal(t, exitOK, run([]string{"config", "init", path, "--force"}, &stdout, &stderr))
}

// TestRunFailures maps failures to exit codes
func TestRunFailures(t *testing.T) {
	log := writeTestLog(t)
	tests := map[string]struct {
		args []string
		code int
	}{
		"no arguments":      {[]string{"casagrande"}, exitUsage},
		"unknown flag":      {[]string{"casagrande", log, "--sigma-v", "100", "--bogus"}, exitUsage},
		"missing sigma-v":   {[]string{"casagrande", log, "--reloading"}, exitUsage},
		"unknown mode":      {[]string{"casagrande", log, "--sigma-v", "100", "--mode", "bezier"}, exitUsage},
		"bad range":         {[]string{"casagrande", log, "--sigma-v", "100", "--range", "20"}, exitUsage},
		"manual off curve":  {[]string{"casagrande", log, "--sigma-v", "100", "--reloading", "--mode", "manual", "--mcp", "1e6"}, exitUsage},
		"missing data file": {[]string{"casagrande", filepath.Join(t.TempDir(), "absent.csv"), "--sigma-v", "100"}, exitData},
		"reload undeclared": {[]string{"indices", log, "--sigma-v", "100", "--reloading=false", "--cc-range", "400,5000"}, exitData},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			assert.Equal(t, tt.code, code, errOut)
			assert.Contains(t, errOut, "error:")
		})
	}
}

// TestExitCode covers the typed errors of the computation packages
func TestExitCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		code int
	}{
		"nil":          {nil, exitOK},
		"plain":        {errors.New("boom"), exitFailure},
		"usage":        {usageError{errors.New("bad flag")}, exitUsage},
		"data":         {dataError{errors.New("bad file")}, exitData},
		"input":        {fmt.Errorf("wrapped: %w", &casagrande.InvalidInputError{Field: "mcp"}), exitUsage},
		"range":        {&interpolation.InvalidRangeError{Low: 5, High: 1}, exitUsage},
		"insufficient": {&interpolation.InsufficientDataError{Required: 5, Got: 2}, exitData},
		"invalid data": {&interpolation.InvalidDataError{Err: errors.New("nan")}, exitData},
		"no peak":      {&casagrande.NoCurvatureMaximumError{Samples: 100}, exitConstruction},
		"degenerate":   {&casagrande.DegenerateGeometryError{Reason: "parallel"}, exitConstruction},
		"non-physical": {fmt.Errorf("computing: %w", &casagrande.NonPhysicalResultError{Pressure: -1}), exitConstruction},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.code, exitCode(tt.err))
		})
	}
}
