package oedometer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigmap/internal/models"
	"sigmap/pkg/casagrande"
)

// loading branch before the first unloading
func eLoad(s float64) float64 { return 1.10 - 0.05*math.Log10(s/12.5) }

// virgin compression line, Cc = 0.4
func eVirgin(s float64) float64 { return 2.0 - 0.4*math.Log10(s) }

// unloading from 200 kPa, Cr = 0.05
func eUnload(s float64) float64 { return eLoad(200) + 0.05*math.Log10(200/s) }

// createTestRecords builds a log with one unload/reload cycle at 200 kPa
func createTestRecords() []models.TestRecord {
	rec := func(s, e float64) models.TestRecord {
		return models.TestRecord{Stress: s, Strain: 100 * (1.2 - e) / 2.2, VoidRatio: e}
	}
	return []models.TestRecord{
		rec(0, 1.2), // on-table
		rec(12.5, eLoad(12.5)),
		rec(25, eLoad(25)),
		rec(50, eLoad(50)),
		rec(100, eLoad(100)),
		rec(200, eLoad(200)),
		rec(100, eUnload(100)),
		rec(50, eUnload(50)),
		rec(25, eUnload(25)),
		rec(50, eUnload(50)-0.004),
		rec(100, eUnload(100)-0.004),
		rec(200, eUnload(200)-0.004),
		rec(400, eVirgin(400)),
		rec(800, eVirgin(800)),
		rec(1600, eVirgin(1600)),
		rec(3200, eVirgin(3200)),
	}
}

// createMonotonicRecords builds a log without unloading
func createMonotonicRecords() []models.TestRecord {
	var out []models.TestRecord
	for _, s := range []float64{0, 12.5, 25, 50, 100, 200, 400, 800, 1600} {
		e := eLoad(math.Max(s, 12.5))
		if s == 0 {
			e = 1.2
		}
		out = append(out, models.TestRecord{Stress: s, VoidRatio: e})
	}
	return out
}

// TestNewWithReloading verifies break indices and cleaning
func TestNewWithReloading(t *testing.T) {
	d, err := New(createTestRecords(), 100, Options{StrainPercent: true, Reloading: true})
	require.NoError(t, err)

	assert.Equal(t, BreakIndices{Unloading: 5, UnloadingEnd: 8, Reloaded: 11, LastLoading: 15}, d.Breaks)
	assert.Equal(t, []float64{0, 12.5, 25, 50, 100, 200, 400, 800, 1600, 3200}, d.Cleaned.Stresses())
	require.NoError(t, d.Cleaned.Validate())

	assert.Equal(t, 1.2, d.InitialVoidRatio)
	assert.InDelta(t, eLoad(100), d.VoidRatioAtSigmaV, 1e-12)

	// strain converted from percent
	assert.InDelta(t, (1.2-eLoad(12.5))/2.2, d.Raw[1].Strain, 1e-12)

	// defaults: steepest spline slope and option 1
	assert.False(t, d.VirginLine.Fitted)
	assert.Nil(t, d.CompressionPoints)
	assert.Greater(t, d.VirginLine.CompressionIndex, 0.38)
	assert.Less(t, d.VirginLine.CompressionIndex, 0.5)
	assert.Equal(t, 1, d.Recompression.Option)
	assert.InDelta(t, 0.05, d.Recompression.Index, 1e-12)
}

// TestNewKeepsInputRecords verifies the raw slice is copied
func TestNewKeepsInputRecords(t *testing.T) {
	records := createTestRecords()
	strain := records[3].Strain
	_, err := New(records, 100, Options{StrainPercent: true, Reloading: true})
	require.NoError(t, err)
	assert.Equal(t, strain, records[3].Strain)
}

// TestNewWithoutReloading keeps only the first loading branch
func TestNewWithoutReloading(t *testing.T) {
	d, err := New(createTestRecords()[:9], 50, Options{})
	require.NoError(t, err)

	assert.Equal(t, BreakIndices{Unloading: 5, UnloadingEnd: 8, Reloaded: -1, LastLoading: -1}, d.Breaks)
	assert.Equal(t, []float64{0, 12.5, 25, 50, 100, 200}, d.Cleaned.Stresses())
	assert.InDelta(t, 0.05, d.Recompression.Index, 1e-12)

	require.NoError(t, d.RecompressionIndex(2))
	assert.InDelta(t, 0.05, d.Recompression.Index, 1e-12)
	assert.InDelta(t, 1.0, d.Recompression.R2, 1e-12)
	assert.Len(t, d.Recompression.Points, 4)

	assert.Error(t, d.RecompressionIndex(3))
}

// TestNewRejectsUndeclaredReloading fails when loading continues past the
// unloading stress without a reloading stage
func TestNewRejectsUndeclaredReloading(t *testing.T) {
	_, err := New(createTestRecords(), 100, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUndeclaredReloading), "got %v", err)
	assert.Contains(t, err.Error(), "kPa")
}

// TestNewMonotonicLog handles a test without unloading
func TestNewMonotonicLog(t *testing.T) {
	d, err := New(createMonotonicRecords(), 50, Options{})
	require.NoError(t, err)
	assert.Equal(t, -1, d.Breaks.Unloading)
	assert.Len(t, d.Cleaned, 9)
	assert.Zero(t, d.Recompression)
	assert.True(t, errors.Is(d.RecompressionIndex(1), ErrNoUnloading))

	_, err = New(createMonotonicRecords(), 50, Options{Reloading: true})
	assert.True(t, errors.Is(err, ErrNoUnloading), "got %v", err)
}

// TestNewRejectsBadInput covers constructor failures
func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, 50, Options{})
	assert.Error(t, err)

	_, err = New(createTestRecords(), 0, Options{Reloading: true})
	assert.Error(t, err)

	// unloading never followed by reloading
	_, err = New(createTestRecords()[:9], 50, Options{Reloading: true})
	assert.Error(t, err)

	// too few loading steps for a spline
	_, err = New(createTestRecords()[:4], 50, Options{})
	assert.Error(t, err)
}

// TestFindStressIdx checks ceiling indices on the cleaned curve
func TestFindStressIdx(t *testing.T) {
	d, err := New(createTestRecords(), 100, Options{Reloading: true})
	require.NoError(t, err)

	assert.Equal(t, 1, d.FindStressIdx(0))
	assert.Equal(t, 4, d.FindStressIdx(100))
	assert.Equal(t, 6, d.FindStressIdx(300))
	assert.Equal(t, len(d.Cleaned), d.FindStressIdx(5000))
}

// TestCompressionIndexLinearFit fits the virgin branch
func TestCompressionIndexLinearFit(t *testing.T) {
	d, err := New(createTestRecords(), 100, Options{Reloading: true})
	require.NoError(t, err)

	low, high := 400.0, 5000.0
	require.NoError(t, d.CompressionIndex(&low, &high))
	assert.True(t, d.VirginLine.Fitted)
	assert.InDelta(t, 0.4, d.VirginLine.CompressionIndex, 1e-12)
	assert.InDelta(t, 2.0, d.VirginLine.Intercept, 1e-12)
	assert.InDelta(t, 1.0, d.VirginLine.R2, 1e-12)
	assert.Equal(t, []float64{400, 800, 1600, 3200}, d.CompressionPoints.Stresses())

	// the upper bound is excluded
	high = 1600
	require.NoError(t, d.CompressionIndex(&low, &high))
	assert.Equal(t, []float64{400, 800}, d.CompressionPoints.Stresses())

	low, high = 3000, 5000
	assert.Error(t, d.CompressionIndex(&low, &high))
	low, high = 800, 400
	assert.Error(t, d.CompressionIndex(&low, &high))

	// back to the spline estimate
	require.NoError(t, d.CompressionIndex(nil, nil))
	assert.False(t, d.VirginLine.Fitted)
}

// TestRecompressionOptions compares the three point selections
func TestRecompressionOptions(t *testing.T) {
	d, err := New(createTestRecords(), 100, Options{Reloading: true})
	require.NoError(t, err)

	require.NoError(t, d.RecompressionIndex(2))
	assert.InDelta(t, 0.05, d.Recompression.Index, 1e-12)
	assert.Len(t, d.Recompression.Points, 4)

	require.NoError(t, d.RecompressionIndex(3))
	assert.Len(t, d.Recompression.Points, 7)
	assert.InDelta(t, 0.05, d.Recompression.Index, 0.01)
	assert.Less(t, d.Recompression.R2, 1.0)

	assert.Error(t, d.RecompressionIndex(4))

	line := RecompressionLine{Index: 0.05, Intercept: 1}
	assert.InDelta(t, 0.9, line.VoidRatioAt(100), 1e-15)
}

// TestCleanedCurveFeedsCasagrande runs the construction on processed data
func TestCleanedCurveFeedsCasagrande(t *testing.T) {
	d, err := New(createTestRecords(), 100, Options{Reloading: true})
	require.NoError(t, err)
	low, high := 400.0, 5000.0
	require.NoError(t, d.CompressionIndex(&low, &high))

	result, err := casagrande.Compute(d.Cleaned, &casagrande.Params{SigmaV: d.SigmaV, VirginLine: d.VirginLine})
	require.NoError(t, err)
	assert.Greater(t, result.PreconsolidationPressure, 150.0)
	assert.Less(t, result.PreconsolidationPressure, 1000.0)
	assert.InDelta(t, result.PreconsolidationPressure/100, result.OCR, 1e-9)
}
