package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SignificanceLevel is the two-sided alpha of the slope test.
const SignificanceLevel = 0.05

// RegressionResult is an ordinary least-squares fit y = Slope*x + Intercept.
type RegressionResult struct {
	Slope       float64
	Intercept   float64
	SlopeSD     float64
	Significant bool
}

// Fit regresses y on x over the 12 monthly points.
func Fit(x, y MonthlyClimatology) (RegressionResult, error) {
	if !x.Finite() || !y.Finite() {
		return RegressionResult{}, fmt.Errorf("%w: %s against %s has non-finite values",
			ErrDegenerateRegression, y.Variable.ShortName, x.Variable.ShortName)
	}
	xs, ys := x.Slice(), y.Slice()

	if constant(xs) {
		return RegressionResult{}, fmt.Errorf("%w: %s is constant", ErrDegenerateRegression, x.Variable.ShortName)
	}
	xMean := stat.Mean(xs, nil)
	var ssx float64
	for _, v := range xs {
		ssx += (v - xMean) * (v - xMean)
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	n := float64(len(xs))
	dof := n - 2
	var sse float64
	for i := range xs {
		r := ys[i] - (slope*xs[i] + intercept)
		sse += r * r
	}
	sd := math.Sqrt(sse / dof / ssx)
	if !finite(slope) || !finite(intercept) || !finite(sd) {
		return RegressionResult{}, fmt.Errorf("%w: %s against %s has no finite fit",
			ErrDegenerateRegression, y.Variable.ShortName, x.Variable.ShortName)
	}

	return RegressionResult{
		Slope:       slope,
		Intercept:   intercept,
		SlopeSD:     sd,
		Significant: significant(slope, sd, dof),
	}, nil
}

// constant reports whether every value equals the first. The spread around
// a rounded mean is not exact zero for a constant series.
func constant(xs []float64) bool {
	for _, v := range xs[1:] {
		if v != xs[0] {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// A perfect fit has zero standard deviation and any non-zero slope is significant.
func significant(slope, sd, dof float64) bool {
	crit := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}.Quantile(1 - SignificanceLevel/2)
	if sd == 0 {
		return slope != 0
	}
	return math.Abs(slope/sd) > crit
}

// RelativeError scores a dataset's (v, d) seasonal cycle against the reference
// cycle (vRef, dRef):
//
//	100 * nanmean((|v-vRef|/nanmean(vRef))^2 + (|d-dRef|/nanmean(dRef))^2)
func RelativeError(v, vRef, d, dRef MonthlyClimatology) (float64, error) {
	vMean, err := nanMean(vRef.Values[:])
	if err != nil {
		return 0, fmt.Errorf("reference %s mean: %w", vRef.Variable.ShortName, err)
	}
	dMean, err := nanMean(dRef.Values[:])
	if err != nil {
		return 0, fmt.Errorf("reference %s mean: %w", dRef.Variable.ShortName, err)
	}
	if vMean == 0 || dMean == 0 {
		return 0, errors.New("relative error undefined for zero reference mean")
	}

	terms := make([]float64, MonthsPerYear)
	for m := range terms {
		ev := math.Abs(v.Values[m]-vRef.Values[m]) / vMean
		ed := math.Abs(d.Values[m]-dRef.Values[m]) / dMean
		terms[m] = ev*ev + ed*ed
	}
	mean, err := nanMean(terms)
	if err != nil {
		return 0, fmt.Errorf("relative error: %w", err)
	}
	return 100 * mean, nil
}

// nanMean averages the non-NaN values.
func nanMean(values []float64) (float64, error) {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	return stats.Mean(finite)
}

// SlopeRatio divides a dataset's slope by the reference slope.
func SlopeRatio(slope, reference float64) (float64, error) {
	if reference == 0 {
		return 0, ErrUndefinedSlopeRatio
	}
	return slope / reference, nil
}

// Comparison scores one relationship of a dataset against the reference.
type Comparison struct {
	SlopeRatio float64
	Error      float64
}

// Compare builds the reference-relative scores of the relationship y(x)
// against the reference relationship yRef(xRef).
func Compare(fit, refFit RegressionResult, x, xRef, y, yRef MonthlyClimatology) (Comparison, error) {
	ratio, err := SlopeRatio(fit.Slope, refFit.Slope)
	if err != nil {
		return Comparison{}, fmt.Errorf("%s against %s: %w", y.Variable.ShortName, x.Variable.ShortName, err)
	}
	score, err := RelativeError(x, xRef, y, yRef)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{SlopeRatio: ratio, Error: score}, nil
}
