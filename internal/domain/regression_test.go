package domain

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitExactLine(t *testing.T) {
	x := climOf(SeaIceConcentration, months(func(m int) float64 { return float64(m) })...)
	y := climOf(SeaIceSpeed, months(func(m int) float64 { return 2*float64(m) + 1 })...)

	got, err := Fit(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.Slope, 1e-9)
	assert.InDelta(t, 1.0, got.Intercept, 1e-9)
	assert.InDelta(t, 0.0, got.SlopeSD, 1e-9)
	assert.True(t, got.Significant)
}

func TestFitNoisyLine(t *testing.T) {
	noise := []float64{0.3, -0.2, 0.1, -0.4, 0.2, 0.0, -0.1, 0.3, -0.3, 0.1, 0.2, -0.2}
	x := climOf(SeaIceThickness, months(func(m int) float64 { return float64(m) })...)
	y := climOf(SeaIceSpeed, months(func(m int) float64 { return -0.5*float64(m) + 10 + noise[m-1] })...)

	got, err := Fit(x, y)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, got.Slope, 0.05)
	assert.Greater(t, got.SlopeSD, 0.0)
	assert.True(t, got.Significant)
}

func TestFitFlatIsNotSignificant(t *testing.T) {
	alternating := []float64{1, -1, 1, -1, 1, -1, -1, 1, -1, 1, -1, 1}
	x := climOf(SeaIceThickness, months(func(m int) float64 { return float64(m) })...)
	y := climOf(SeaIceSpeed, alternating...)

	got, err := Fit(x, y)
	require.NoError(t, err)
	assert.False(t, got.Significant)
}

func TestFitConstantX(t *testing.T) {
	y := climOf(SeaIceSpeed, months(func(m int) float64 { return float64(m) })...)
	for _, value := range []float64{0.3, 0.7, 0.9, 1, 2, 1e-3, 1234.5678} {
		t.Run(fmt.Sprint(value), func(t *testing.T) {
			x := climOf(SeaIceConcentration, months(func(int) float64 { return value })...)

			got, err := Fit(x, y)
			require.ErrorIs(t, err, ErrDegenerateRegression)
			assert.Equal(t, RegressionResult{}, got)
		})
	}
}

func TestFitNonFinite(t *testing.T) {
	x := climOf(SeaIceConcentration, months(func(m int) float64 { return float64(m) })...)
	y := climOf(SeaIceSpeed, months(func(m int) float64 { return float64(m) })...)
	y.Values[4] = math.NaN()

	_, err := Fit(x, y)
	require.ErrorIs(t, err, ErrDegenerateRegression)
}

func TestRelativeErrorIdentical(t *testing.T) {
	v := climOf(SeaIceConcentration, months(func(m int) float64 { return float64(m) / 12 })...)
	d := climOf(SeaIceSpeed, months(func(m int) float64 { return 5 + float64(m) })...)

	got, err := RelativeError(v, v, d, d)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestRelativeErrorFormula(t *testing.T) {
	vRef := climOf(SeaIceConcentration, months(func(int) float64 { return 2 })...)
	dRef := climOf(SeaIceSpeed, months(func(int) float64 { return 4 })...)
	v := climOf(SeaIceConcentration, months(func(int) float64 { return 3 })...)
	d := climOf(SeaIceSpeed, months(func(int) float64 { return 2 })...)

	// (1/2)^2 + (2/4)^2 = 0.5 every month
	got, err := RelativeError(v, vRef, d, dRef)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, got, 1e-9)
}

func TestRelativeErrorZeroReferenceMean(t *testing.T) {
	zero := climOf(SeaIceConcentration)
	d := climOf(SeaIceSpeed, months(func(int) float64 { return 4 })...)

	_, err := RelativeError(zero, zero, d, d)
	require.Error(t, err)
}

func TestSlopeRatio(t *testing.T) {
	got, err := SlopeRatio(-1.25, -1.25)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = SlopeRatio(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)

	_, err = SlopeRatio(3, 0)
	require.ErrorIs(t, err, ErrUndefinedSlopeRatio)
}

func TestCompareIdenticalDatasets(t *testing.T) {
	x := climOf(SeaIceConcentration, months(func(m int) float64 { return 0.5 + float64(m)/30 })...)
	y := climOf(SeaIceSpeed, months(func(m int) float64 { return 12 - 0.5*float64(m) + math.Sin(float64(m)) })...)
	fit, err := Fit(x, y)
	require.NoError(t, err)

	got, err := Compare(fit, fit, x, x, y, y)
	require.NoError(t, err)
	assert.Equal(t, Comparison{SlopeRatio: 1, Error: 0}, got)
}

func TestCompareFlatReferenceSlope(t *testing.T) {
	x := climOf(SeaIceConcentration, months(func(m int) float64 { return float64(m) })...)
	y := climOf(SeaIceSpeed, months(func(m int) float64 { return float64(m) })...)

	_, err := Compare(RegressionResult{Slope: 1}, RegressionResult{}, x, x, y, y)
	assert.ErrorIs(t, err, ErrUndefinedSlopeRatio)
}
