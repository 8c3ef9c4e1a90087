package domain

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// WeightedMean returns the mask-weighted mean of one time slice. Cells with a
// NaN weight or value count in neither numerator nor denominator.
func WeightedMean(values []float64, mask SpatialWeightMask) (float64, error) {
	if len(values) != len(mask.Weights) {
		return 0, fmt.Errorf("%w: %d values, %d weights", ErrGridMismatch, len(values), len(mask.Weights))
	}
	vs := make([]float64, 0, len(values))
	ws := make([]float64, 0, len(values))
	for c, w := range mask.Weights {
		v := values[c]
		if math.IsNaN(w) || math.IsNaN(v) || w == 0 {
			continue
		}
		vs = append(vs, v)
		ws = append(ws, w)
	}
	if len(vs) == 0 {
		return 0, ErrEmptyMask
	}
	return stat.Mean(vs, ws), nil
}

// Reduce collapses a field to an area-weighted multi-year monthly mean.
// Every calendar month must have at least one time step.
func Reduce(f *GriddedField, mask SpatialWeightMask) (MonthlyClimatology, error) {
	clim := MonthlyClimatology{Variable: f.Variable}
	if len(mask.Weights) != f.Grid.Size() {
		return clim, fmt.Errorf("%s: %w: mask has %d cells, grid has %d",
			f.Variable.ShortName, ErrGridMismatch, len(mask.Weights), f.Grid.Size())
	}

	var sums [MonthsPerYear]float64
	for t, slice := range f.Data {
		mean, err := WeightedMean(slice, mask)
		if err != nil {
			return clim, fmt.Errorf("%s at %s: %w", f.Variable.ShortName, f.Times[t].Format("2006-01"), err)
		}
		m := f.Times[t].Month() - 1
		sums[m] += mean
		clim.Counts[m]++
	}

	for m := range sums {
		if clim.Counts[m] == 0 {
			return clim, fmt.Errorf("%s: %w", f.Variable.ShortName, &MissingMonthError{Month: monthOf(m)})
		}
		clim.Values[m] = sums[m] / float64(clim.Counts[m])
	}
	return clim, nil
}

func monthOf(index int) time.Month {
	return time.Month(index + 1)
}
