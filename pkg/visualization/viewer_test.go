package visualization

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigmap/internal/models"
	"sigmap/pkg/casagrande"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// createTestCurve samples e = 1.5 - 0.08*(log10(stress) - 1)^2
func createTestCurve() models.Curve {
	stresses := []float64{0, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000}
	curve := make(models.Curve, len(stresses))
	for i, s := range stresses {
		e := 1.5
		if s > 0 {
			x := math.Log10(s) - 1
			e = 1.5 - 0.08*x*x
		}
		curve[i] = models.CompressibilityPoint{Stress: s, VoidRatio: e}
	}
	return curve
}

// createTestResult runs the construction in the given mode
func createTestResult(t testing.TB, mode casagrande.Mode) *models.Result {
	t.Helper()
	params := &casagrande.Params{
		Mode:       mode,
		ManualMCP:  20,
		Polynomial: casagrande.PolynomialParams{Low: 0, High: 20000},
		SigmaV:     50,
		VirginLine: models.VirginLine{CompressionIndex: 0.4, Intercept: 2.4},
	}
	result, err := casagrande.Compute(createTestCurve(), params)
	require.NoError(t, err)
	return result
}

// TestNewViewerValidates rejects missing input
func TestNewViewerValidates(t *testing.T) {
	_, err := NewViewer(createTestCurve(), nil)
	assert.Error(t, err)

	_, err = NewViewer(createTestCurve()[:2], createTestResult(t, casagrande.ModeSpline))
	assert.Error(t, err)

	v, err := NewViewer(createTestCurve(), createTestResult(t, casagrande.ModeSpline))
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, v.Width)
	assert.Equal(t, DefaultHeight, v.Height)
}

// TestConstructionPlot verifies the tile is built with a log stress axis
func TestConstructionPlot(t *testing.T) {
	for _, mode := range []casagrande.Mode{casagrande.ModeSpline, casagrande.ModePolynomial, casagrande.ModeManual} {
		v, err := NewViewer(createTestCurve(), createTestResult(t, mode))
		require.NoError(t, err)

		p, err := v.ConstructionPlot()
		require.NoError(t, err, mode.String())
		assert.Equal(t, "Casagrande construction", p.Title.Text)
		assert.Greater(t, p.X.Min, 0.0)
		assert.LessOrEqual(t, p.X.Min, 5.0)
		assert.GreaterOrEqual(t, p.X.Max, 10000.0)
	}
}

// TestCurvaturePlotOnlyWithSamples checks the second tile is optional
func TestCurvaturePlotOnlyWithSamples(t *testing.T) {
	v, err := NewViewer(createTestCurve(), createTestResult(t, casagrande.ModeManual))
	require.NoError(t, err)
	p, err := v.CurvaturePlot()
	require.NoError(t, err)
	assert.Nil(t, p)

	v, err = NewViewer(createTestCurve(), createTestResult(t, casagrande.ModeSpline))
	require.NoError(t, err)
	p, err = v.CurvaturePlot()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Greater(t, p.Y.Max, 0.0)
}

// TestWriteToFormats renders the figure in memory
func TestWriteToFormats(t *testing.T) {
	v, err := NewViewer(createTestCurve(), createTestResult(t, casagrande.ModeSpline))
	require.NoError(t, err)

	var png bytes.Buffer
	n, err := v.WriteTo(&png, "png")
	require.NoError(t, err)
	assert.Equal(t, int64(png.Len()), n)
	assert.True(t, bytes.HasPrefix(png.Bytes(), pngMagic))

	var svg bytes.Buffer
	_, err = v.WriteTo(&svg, ".SVG")
	require.NoError(t, err)
	assert.True(t, strings.Contains(svg.String(), "<svg"))

	var pdf bytes.Buffer
	_, err = v.WriteTo(&pdf, "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Bytes(), []byte("%PDF")))

	_, err = v.WriteTo(&bytes.Buffer{}, "bmp")
	assert.Error(t, err)
}

// TestSave writes a PNG file, creating the directory
func TestSave(t *testing.T) {
	v, err := NewViewer(createTestCurve(), createTestResult(t, casagrande.ModeManual))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plots", "construction.png")
	require.NoError(t, v.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))

	assert.Error(t, v.Save(filepath.Join(t.TempDir(), "construction")))
}

func BenchmarkWriteToPNG(b *testing.B) {
	v, err := NewViewer(createTestCurve(), createTestResult(b, casagrande.ModeSpline))
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.WriteTo(&bytes.Buffer{}, "png"); err != nil {
			b.Fatal(err)
		}
	}
}
