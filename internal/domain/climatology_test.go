package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformMask(n int) SpatialWeightMask {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return SpatialWeightMask{Weights: w}
}

func TestWeightedMean(t *testing.T) {
	mask := SpatialWeightMask{Weights: []float64{1, 3, 0, math.NaN()}}

	got, err := WeightedMean([]float64{2, 4, 100, 100}, mask)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, got, 1e-12)
}

func TestWeightedMeanSkipsNaNValues(t *testing.T) {
	mask := SpatialWeightMask{Weights: []float64{1, 1, 1}}

	got, err := WeightedMean([]float64{1, math.NaN(), 3}, mask)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-12)
}

func TestWeightedMeanNoUsableCells(t *testing.T) {
	mask := SpatialWeightMask{Weights: []float64{1, 0}}

	_, err := WeightedMean([]float64{math.NaN(), 5}, mask)
	require.ErrorIs(t, err, ErrEmptyMask)
}

func TestReduceTwelveMonthsOrdered(t *testing.T) {
	g := NewRectilinearGrid([]float64{85}, []float64{0, 10})
	times := monthlyTimes(2000, 3)
	f := &GriddedField{Variable: SeaIceSpeed, Grid: g, Times: times}
	for _, ts := range times {
		year := float64(ts.Year() - 2000)
		m := float64(ts.Month())
		f.Data = append(f.Data, []float64{m + year, m + year + 2})
	}

	clim, err := Reduce(f, uniformMask(2))
	require.NoError(t, err)

	want := months(func(m int) float64 { return float64(m) + 2 })
	if diff := cmp.Diff(want, clim.Slice(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("climatology mismatch (-want +got):\n%s", diff)
	}
	for m := range clim.Counts {
		assert.Equal(t, 3, clim.Counts[m])
	}
	assert.Equal(t, SeaIceSpeed, clim.Variable)
}

func TestReduceUnevenYears(t *testing.T) {
	g := NewRectilinearGrid([]float64{85}, []float64{0})
	times := append(monthlyTimes(2000, 1), time.Date(2001, time.January, 16, 0, 0, 0, 0, time.UTC))
	f := &GriddedField{Variable: SeaIceConcentration, Grid: g, Times: times}
	for range monthlyTimes(2000, 1) {
		f.Data = append(f.Data, []float64{1})
	}
	f.Data = append(f.Data, []float64{3})

	clim, err := Reduce(f, uniformMask(1))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, clim.Month(time.January), 1e-12)
	assert.Equal(t, 2, clim.Counts[0])
	assert.InDelta(t, 1.0, clim.Month(time.December), 1e-12)
}

func TestReduceMissingMonth(t *testing.T) {
	g := NewRectilinearGrid([]float64{85}, []float64{0})
	times := monthlyTimes(2000, 1)
	times = append(times[:2], times[3:]...) // drop March
	f := &GriddedField{Variable: SeaIceThickness, Grid: g, Times: times}
	for range times {
		f.Data = append(f.Data, []float64{1})
	}

	_, err := Reduce(f, uniformMask(1))
	require.ErrorIs(t, err, ErrMissingMonth)

	var mm *MissingMonthError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, time.March, mm.Month)
}

func TestReduceEmptyTimeStep(t *testing.T) {
	g := NewRectilinearGrid([]float64{85}, []float64{0})
	times := monthlyTimes(2000, 1)
	f := &GriddedField{Variable: SeaIceThickness, Grid: g, Times: times}
	for range times {
		f.Data = append(f.Data, []float64{math.NaN()})
	}

	_, err := Reduce(f, uniformMask(1))
	require.ErrorIs(t, err, ErrEmptyMask)
}

func TestReduceMaskShapeMismatch(t *testing.T) {
	g := NewRectilinearGrid([]float64{85}, []float64{0, 1})
	f := &GriddedField{Variable: SeaIceThickness, Grid: g}

	_, err := Reduce(f, uniformMask(3))
	require.ErrorIs(t, err, ErrGridMismatch)
}
